package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/MattHolloway/gatekeep/internal/models"
	pkgauth "github.com/MattHolloway/gatekeep/pkg/auth"
	pkglogger "github.com/MattHolloway/gatekeep/pkg/logger"
)

// AccountService handles profile reads and updates for authenticated accounts
type AccountService struct {
	repo        AccountRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAccountService creates a new AccountService
func NewAccountService(repo AccountRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AccountService {
	return &AccountService{
		repo:        repo,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UpdateProfileInput carries the mutable profile fields. Nil pointers mean
// "leave unchanged". Email is deliberately absent: changing it would bypass
// verification.
type UpdateProfileInput struct {
	Username  *string
	Password  *string
	AvatarURL *string
}

// GetProfile returns the public projection of an account
func (s *AccountService) GetProfile(ctx context.Context, accountID string) (*AccountResponse, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get account by id", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return AccountToResponse(account), nil
}

// UpdateProfile applies a partial update to an account's profile. Only the
// account holder may update their own profile; the handler enforces that the
// session matches accountID before calling here.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, input UpdateProfileInput) (*AccountResponse, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get account by id", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if input.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*input.Username))
		if err := pkgauth.ValidateUsername(username); err != nil {
			return nil, models.ErrInvalidInput
		}
		if username != account.Username {
			existing, err := s.repo.GetByUsername(ctx, username)
			if err == nil && existing.ID != accountID {
				return nil, models.ErrConflict
			}
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				s.logger.Error("failed to check username availability", slog.Any("error", err))
				return nil, models.ErrInternalServer
			}
			account.Username = username
		}
	}

	if input.AvatarURL != nil {
		account.AvatarURL = strings.TrimSpace(*input.AvatarURL)
	}

	var passwordHash *string
	if input.Password != nil {
		if err := pkgauth.ValidatePassword(*input.Password); err != nil {
			return nil, models.ErrInvalidInput
		}
		hashed, err := pkgauth.HashPassword(*input.Password)
		if err != nil {
			s.logger.Error("failed to hash password", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		passwordHash = &hashed
	}

	// Profile fields and the password hash are written in one transaction.
	updated, err := s.repo.UpdateProfile(ctx, accountID, account, passwordHash)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to update account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if passwordHash != nil {
		s.auditLogger.LogPasswordChange(accountID, "", true)
	}

	s.logger.Info("profile updated", slog.String("account_id", accountID))
	s.auditLogger.LogAccountAction("profile_updated", accountID, "", nil)

	return AccountToResponse(updated), nil
}
