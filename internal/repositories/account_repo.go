package repositories

import (
	"context"
	"time"

	"github.com/MattHolloway/gatekeep/internal/database"
	"github.com/MattHolloway/gatekeep/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, username, email, password_hash, is_account_verified, is_oauth_account,
		otp_code, otp_expires_at, avatar_url, password_changed_at, created_at, updated_at`

type AccountRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db, pool: db.Pool}
}

// rowScanner interface for scanning account rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAccountRow handles nullable fields and populates an Account model from a database row
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var avatarURL *string

	err := scanner.Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash,
		&account.IsAccountVerified, &account.IsOAuthAccount,
		&account.OTPCode, &account.OTPExpiresAt,
		&avatarURL, &account.PasswordChangedAt,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if avatarURL != nil {
		account.AvatarURL = *avatarURL
	}

	return &account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, username))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	query := `
		INSERT INTO accounts (id, username, email, password_hash, is_account_verified, is_oauth_account,
			otp_code, otp_expires_at, avatar_url, password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + accountColumns

	var avatarURL *string
	if account.AvatarURL != "" {
		avatarURL = &account.AvatarURL
	}

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		account.ID, account.Username, account.Email, account.PasswordHash,
		account.IsAccountVerified, account.IsOAuthAccount,
		account.OTPCode, account.OTPExpiresAt,
		avatarURL, account.PasswordChangedAt,
		account.CreatedAt, account.UpdatedAt,
	))
}

// UpdateProfile replaces the mutable profile fields (username, avatar) of an
// account and, when passwordHash is set, the stored hash. Both writes run in
// one transaction so a failed password write cannot leave a half-applied
// profile update.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id string, account *models.Account, passwordHash *string) (*models.Account, error) {
	account.UpdatedAt = time.Now()

	var avatarURL *string
	if account.AvatarURL != "" {
		avatarURL = &account.AvatarURL
	}

	var updated *models.Account
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE accounts SET username = $1, avatar_url = $2, updated_at = $3
			WHERE id = $4
			RETURNING ` + accountColumns

		var err error
		updated, err = scanAccountRow(tx.QueryRow(ctx, query,
			account.Username, avatarURL, account.UpdatedAt, id,
		))
		if err != nil {
			return err
		}

		if passwordHash != nil {
			now := time.Now()
			query := `
				UPDATE accounts SET password_hash = $1, password_changed_at = $2, updated_at = $2
				WHERE id = $3
			`
			if _, err := tx.Exec(ctx, query, *passwordHash, now, id); err != nil {
				return database.MapPostgresError(err)
			}
			updated.PasswordHash = *passwordHash
			updated.PasswordChangedAt = &now
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// SetOTP stores a fresh verification code and its expiry on the account.
func (r *AccountRepository) SetOTP(ctx context.Context, id, code string, expiresAt time.Time) error {
	query := `
		UPDATE accounts SET otp_code = $1, otp_expires_at = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.pool.Exec(ctx, query, code, expiresAt, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MarkVerified flips the verification flag and clears both OTP columns in a
// single statement, keeping the both-or-neither OTP invariant.
func (r *AccountRepository) MarkVerified(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET is_account_verified = TRUE, otp_code = NULL, otp_expires_at = NULL, updated_at = $1
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the stored hash and records the change time,
// which invalidates reset tokens issued before it.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE accounts SET password_hash = $1, password_changed_at = $2, updated_at = $2
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearExpiredOTPs nulls out verification codes that expired more than a day
// ago. Called by the background cleanup manager. Freshly expired codes are
// retained so a late submission still gets an expiry error rather than an
// invalid-code one.
func (r *AccountRepository) ClearExpiredOTPs(ctx context.Context) (int64, error) {
	query := `
		UPDATE accounts SET otp_code = NULL, otp_expires_at = NULL, updated_at = NOW()
		WHERE otp_expires_at IS NOT NULL AND otp_expires_at <= NOW() - INTERVAL '24 hours'
	`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
