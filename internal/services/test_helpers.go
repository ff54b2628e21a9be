package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/MattHolloway/gatekeep/internal/auth"
	"github.com/MattHolloway/gatekeep/internal/models"
	pkglogger "github.com/MattHolloway/gatekeep/pkg/logger"
)

// MockAccountRepository implements AccountRepository with overridable
// function fields so each test stubs only what it needs.
type MockAccountRepository struct {
	GetByIDFunc        func(ctx context.Context, id string) (*models.Account, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.Account, error)
	GetByUsernameFunc  func(ctx context.Context, username string) (*models.Account, error)
	CreateFunc         func(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateProfileFunc  func(ctx context.Context, id string, account *models.Account, passwordHash *string) (*models.Account, error)
	SetOTPFunc         func(ctx context.Context, id, code string, expiresAt time.Time) error
	MarkVerifiedFunc   func(ctx context.Context, id string) error
	UpdatePasswordFunc func(ctx context.Context, id, passwordHash string) error
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	account.ID = "mock-id"
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()
	return account, nil
}

func (m *MockAccountRepository) UpdateProfile(ctx context.Context, id string, account *models.Account, passwordHash *string) (*models.Account, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, id, account, passwordHash)
	}
	if passwordHash != nil {
		account.PasswordHash = *passwordHash
	}
	return account, nil
}

func (m *MockAccountRepository) SetOTP(ctx context.Context, id, code string, expiresAt time.Time) error {
	if m.SetOTPFunc != nil {
		return m.SetOTPFunc(ctx, id, code, expiresAt)
	}
	return nil
}

func (m *MockAccountRepository) MarkVerified(ctx context.Context, id string) error {
	if m.MarkVerifiedFunc != nil {
		return m.MarkVerifiedFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

// MockEmailSender implements EmailSender with function fields and records
// calls for assertion.
type MockEmailSender struct {
	SendOTPEmailFunc           func(ctx context.Context, email, otp string, expiresAt time.Time) error
	SendPasswordResetEmailFunc func(ctx context.Context, email, resetURL string) error
	SendLoginAlertEmailFunc    func(ctx context.Context, email, ipAddress string) error

	OTPEmails   []string
	ResetURLs   []string
	AlertEmails []string
}

func (m *MockEmailSender) SendOTPEmail(ctx context.Context, email, otp string, expiresAt time.Time) error {
	m.OTPEmails = append(m.OTPEmails, email)
	if m.SendOTPEmailFunc != nil {
		return m.SendOTPEmailFunc(ctx, email, otp, expiresAt)
	}
	return nil
}

func (m *MockEmailSender) SendPasswordResetEmail(ctx context.Context, email, resetURL string) error {
	m.ResetURLs = append(m.ResetURLs, resetURL)
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, resetURL)
	}
	return nil
}

func (m *MockEmailSender) SendLoginAlertEmail(ctx context.Context, email, ipAddress string) error {
	m.AlertEmails = append(m.AlertEmails, email)
	if m.SendLoginAlertEmailFunc != nil {
		return m.SendLoginAlertEmailFunc(ctx, email, ipAddress)
	}
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuthService(repo *MockAccountRepository, sender *MockEmailSender) *AuthService {
	logger := newTestLogger()
	tm := auth.NewTokenManager("test-secret-key-for-unit-tests", 24*time.Hour, 10*time.Minute)
	return NewAuthService(repo, tm, sender, logger, pkglogger.NewAuditLogger(logger), time.Hour, "https://app.example.com")
}

func newTestAccountService(repo *MockAccountRepository) *AccountService {
	logger := newTestLogger()
	return NewAccountService(repo, logger, pkglogger.NewAuditLogger(logger))
}
