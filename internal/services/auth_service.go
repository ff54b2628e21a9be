package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/MattHolloway/gatekeep/internal/auth"
	"github.com/MattHolloway/gatekeep/internal/models"
	pkgauth "github.com/MattHolloway/gatekeep/pkg/auth"
	pkglogger "github.com/MattHolloway/gatekeep/pkg/logger"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateProfile(ctx context.Context, id string, account *models.Account, passwordHash *string) (*models.Account, error)
	SetOTP(ctx context.Context, id, code string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// AuthService orchestrates the account lifecycle: registration, OTP
// verification, login, OAuth login, and password reset.
type AuthService struct {
	repo        AccountRepository
	tm          *auth.TokenManager
	emailSender EmailSender
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	otpExpiry   time.Duration
	appBaseURL  string
}

// NewAuthService creates a new AuthService
func NewAuthService(
	repo AccountRepository,
	tm *auth.TokenManager,
	emailSender EmailSender,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	otpExpiry time.Duration,
	appBaseURL string,
) *AuthService {
	return &AuthService{
		repo:        repo,
		tm:          tm,
		emailSender: emailSender,
		logger:      logger,
		auditLogger: auditLogger,
		otpExpiry:   otpExpiry,
		appBaseURL:  appBaseURL,
	}
}

// AccountResponse is the public projection of an account. Fields are
// enumerated explicitly so PasswordHash and OTP state can never leak into a
// response by accident.
type AccountResponse struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	IsAccountVerified bool   `json:"is_account_verified"`
	IsOAuthAccount    bool   `json:"is_oauth_account"`
	AvatarURL         string `json:"avatar_url,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// LoginResponse is returned by Login and LoginOrRegisterOAuth
type LoginResponse struct {
	Token   string           `json:"-"` // delivered via the access_token cookie, never in the body
	Account *AccountResponse `json:"account"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Register creates a new unverified account and emails its verification code.
// The account persists even when the email fails to send; the caller sees the
// send failure but a retry lands on ResendOTP, not a fresh registration.
func (s *AuthService) Register(ctx context.Context, username, email, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	email = normalizeEmail(email)

	if username == "" || email == "" || password == "" {
		return models.ErrInvalidInput
	}
	if !emailPattern.MatchString(email) {
		return models.ErrInvalidInput
	}
	if err := pkgauth.ValidateUsername(username); err != nil {
		return fmt.Errorf("%w: %s", models.ErrInvalidInput, err.Error())
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return fmt.Errorf("%w: %s", models.ErrInvalidInput, err.Error())
	}

	if err := s.checkAvailability(ctx, username, email, ""); err != nil {
		return err
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	otp, err := auth.GenerateOTP()
	if err != nil {
		s.logger.Error("failed to generate otp", slog.Any("error", err))
		return models.ErrInternalServer
	}
	otpExpiresAt := time.Now().Add(s.otpExpiry)

	account := &models.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		OTPCode:      &otp,
		OTPExpiresAt: &otpExpiresAt,
	}

	created, err := s.repo.Create(ctx, account)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return models.ErrConflict
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("account registered", slog.String("account_id", created.ID))
	s.auditLogger.LogAccountAction("account_registered", created.ID, "", nil)

	// Delivery is part of the registration contract; the committed account is
	// never rolled back on failure.
	if err := s.emailSender.SendOTPEmail(ctx, created.Email, otp, otpExpiresAt); err != nil {
		s.logger.Error("failed to send verification otp",
			slog.String("account_id", created.ID),
			slog.Any("error", err))
		return fmt.Errorf("failed to deliver verification code: %w", err)
	}

	return nil
}

// VerifyOTP checks the submitted code against the stored one and, on match,
// marks the account verified and clears the code atomically.
func (s *AuthService) VerifyOTP(ctx context.Context, email, otp string) error {
	email = normalizeEmail(email)

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get account by email", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !account.HasPendingOTP() || *account.OTPCode != otp {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "otp_verification_failed",
			AccountID:     account.ID,
			FailureReason: "code_mismatch",
			Success:       false,
		})
		return models.ErrInvalidInput
	}

	if account.OTPExpired(time.Now()) {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "otp_verification_failed",
			AccountID:     account.ID,
			FailureReason: "code_expired",
			Success:       false,
		})
		return models.ErrExpired
	}

	if err := s.repo.MarkVerified(ctx, account.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to mark account verified",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("account verified", slog.String("account_id", account.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "otp_verified",
		AccountID: account.ID,
		Success:   true,
	})

	return nil
}

// ResendOTP regenerates the verification code for an unverified account and
// redelivers it.
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get account by email", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if account.IsAccountVerified {
		return models.ErrConflict
	}

	otp, err := auth.GenerateOTP()
	if err != nil {
		s.logger.Error("failed to generate otp", slog.Any("error", err))
		return models.ErrInternalServer
	}
	otpExpiresAt := time.Now().Add(s.otpExpiry)

	if err := s.repo.SetOTP(ctx, account.ID, otp, otpExpiresAt); err != nil {
		s.logger.Error("failed to store otp",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.emailSender.SendOTPEmail(ctx, account.Email, otp, otpExpiresAt); err != nil {
		s.logger.Error("failed to resend verification otp",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return fmt.Errorf("failed to deliver verification code: %w", err)
	}

	s.logger.Info("verification otp resent", slog.String("account_id", account.ID))
	return nil
}

// Login authenticates by email and password. The verification gate is
// evaluated on the account looked up by credentials: unverified non-OAuth
// accounts are rejected even with the correct password.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress string) (*LoginResponse, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, models.ErrInvalidInput
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login attempt for unknown email",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     ipAddress,
				FailureReason: "unknown_email",
				Success:       false,
			})
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get account by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			AccountID:     account.ID,
			IPAddress:     ipAddress,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrUnauthorized
	}

	if !account.IsAccountVerified && !account.IsOAuthAccount {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			AccountID:     account.ID,
			IPAddress:     ipAddress,
			FailureReason: "email_not_verified",
			Success:       false,
		})
		return nil, models.ErrAccountNotVerified
	}

	token, err := s.tm.GenerateSessionToken(account.ID, account.IsAccountVerified, account.IsOAuthAccount)
	if err != nil {
		s.logger.Error("failed to generate session token",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Best effort only: an undeliverable alert must never fail the login.
	if err := s.emailSender.SendLoginAlertEmail(ctx, account.Email, ipAddress); err != nil {
		s.logger.Warn("failed to send login alert",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	}

	s.logger.Info("account logged in", slog.String("account_id", account.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		AccountID: account.ID,
		IPAddress: ipAddress,
		Success:   true,
	})

	return &LoginResponse{
		Token:   token,
		Account: AccountToResponse(account),
	}, nil
}

// LoginOrRegisterOAuth signs in an account by its OAuth-asserted email,
// creating it first when unknown. OAuth accounts never go through OTP
// verification.
func (s *AuthService) LoginOrRegisterOAuth(ctx context.Context, email, displayName, avatarURL string) (*LoginResponse, error) {
	email = normalizeEmail(email)
	if email == "" || !emailPattern.MatchString(email) {
		return nil, models.ErrInvalidInput
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to get account by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if account == nil {
		account, err = s.createOAuthAccount(ctx, email, displayName, avatarURL)
		if err != nil {
			return nil, err
		}
	}

	token, err := s.tm.GenerateSessionToken(account.ID, account.IsAccountVerified, account.IsOAuthAccount)
	if err != nil {
		s.logger.Error("failed to generate session token",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "oauth_login_success",
		AccountID: account.ID,
		Success:   true,
	})

	return &LoginResponse{
		Token:   token,
		Account: AccountToResponse(account),
	}, nil
}

// ForgotPassword issues a reset token and emails the reset link.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return models.ErrInvalidInput
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			return models.ErrNotFound
		}
		s.logger.Error("failed to get account by email", slog.Any("error", err))
		return models.ErrInternalServer
	}

	token, err := s.tm.GenerateResetToken(account.ID)
	if err != nil {
		s.logger.Error("failed to generate reset token",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", strings.TrimRight(s.appBaseURL, "/"), token)

	if err := s.emailSender.SendPasswordResetEmail(ctx, account.Email, resetURL); err != nil {
		s.logger.Error("failed to send reset email",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return fmt.Errorf("failed to deliver reset link: %w", err)
	}

	s.logger.Info("password reset requested", slog.String("account_id", account.ID))
	s.auditLogger.LogAccountAction("password_reset_requested", account.ID, "", nil)

	return nil
}

// ResetPassword verifies a reset token and replaces the stored hash. A token
// issued before the account's last password change is rejected, so a link can
// only be redeemed once.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %s", models.ErrInvalidInput, err.Error())
	}

	claims, err := s.tm.VerifyResetToken(token)
	if err != nil {
		// ErrExpired or ErrInvalidInput from the token manager
		return err
	}

	account, err := s.repo.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get account by id", slog.Any("error", err))
		return models.ErrInternalServer
	}

	// IssuedAt carries second precision, so the change time is truncated to
	// seconds before comparing; otherwise a token issued in the same second
	// as a prior password change would be rejected as already used.
	if account.PasswordChangedAt != nil && claims.IssuedAt != nil &&
		claims.IssuedAt.Time.Before(account.PasswordChangedAt.Truncate(time.Second)) {
		s.auditLogger.LogPasswordChange(account.ID, "", false)
		return models.ErrInvalidInput
	}

	hashedPassword, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.UpdatePassword(ctx, account.ID, hashedPassword); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to update password",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password reset", slog.String("account_id", account.ID))
	s.auditLogger.LogPasswordChange(account.ID, "", true)

	return nil
}

// createOAuthAccount synthesizes credentials for a first-time OAuth login.
func (s *AuthService) createOAuthAccount(ctx context.Context, email, displayName, avatarURL string) (*models.Account, error) {
	password, err := pkgauth.GenerateRandomPassword()
	if err != nil {
		s.logger.Error("failed to generate random password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Username collisions on the random suffix are unlikely but possible;
	// retry with a fresh suffix before giving up.
	for attempt := 0; attempt < 3; attempt++ {
		username, err := deriveUsername(displayName)
		if err != nil {
			s.logger.Error("failed to derive username", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		account := &models.Account{
			Username:       username,
			Email:          email,
			PasswordHash:   hashedPassword,
			IsOAuthAccount: true,
			AvatarURL:      avatarURL,
		}

		created, err := s.repo.Create(ctx, account)
		if err == nil {
			s.logger.Info("oauth account created", slog.String("account_id", created.ID))
			s.auditLogger.LogAccountAction("oauth_account_created", created.ID, "", nil)
			return created, nil
		}
		if !errors.Is(err, models.ErrConflict) {
			s.logger.Error("failed to create oauth account", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	return nil, models.ErrConflict
}

// deriveUsername builds a valid username from an OAuth display name plus a
// random 4-digit suffix.
func deriveUsername(displayName string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(displayName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	base := b.String()
	if base == "" {
		base = "user"
	}
	if len(base) > pkgauth.MaxUsernameLen-4 {
		base = base[:pkgauth.MaxUsernameLen-4]
	}

	suffix, err := auth.GenerateOTP()
	if err != nil {
		return "", err
	}

	return base + suffix[:4], nil
}

// checkAvailability reports Conflict when another account holds the username
// or email. excludeID skips the account being updated.
func (s *AuthService) checkAvailability(ctx context.Context, username, email, excludeID string) error {
	if email != "" {
		existing, err := s.repo.GetByEmail(ctx, email)
		if err == nil && existing.ID != excludeID {
			return models.ErrConflict
		}
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to check email availability", slog.Any("error", err))
			return models.ErrInternalServer
		}
	}

	if username != "" {
		existing, err := s.repo.GetByUsername(ctx, username)
		if err == nil && existing.ID != excludeID {
			return models.ErrConflict
		}
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to check username availability", slog.Any("error", err))
			return models.ErrInternalServer
		}
	}

	return nil
}

// AccountToResponse converts an account model to its public projection
func AccountToResponse(account *models.Account) *AccountResponse {
	return &AccountResponse{
		ID:                account.ID,
		Username:          account.Username,
		Email:             account.Email,
		IsAccountVerified: account.IsAccountVerified,
		IsOAuthAccount:    account.IsOAuthAccount,
		AvatarURL:         account.AvatarURL,
		CreatedAt:         account.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         account.UpdatedAt.Format(time.RFC3339),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
