package services

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/MattHolloway/gatekeep/internal/models"
	pkgauth "github.com/MattHolloway/gatekeep/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verifiedAccount(t *testing.T, password string) *models.Account {
	t.Helper()
	hash, err := pkgauth.HashPassword(password)
	require.NoError(t, err)
	return &models.Account{
		ID:                "acc-1",
		Username:          "tester1",
		Email:             "tester@example.com",
		PasswordHash:      hash,
		IsAccountVerified: true,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
}

func TestRegister_Success(t *testing.T) {
	var created *models.Account
	repo := &MockAccountRepository{
		CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			account.ID = "acc-1"
			created = account
			return account, nil
		},
	}
	sender := &MockEmailSender{}
	svc := newTestAuthService(repo, sender)

	err := svc.Register(context.Background(), "NewUser1", "New@Example.com", "secret123")
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, "newuser1", created.Username)
	assert.Equal(t, "new@example.com", created.Email)
	assert.False(t, created.IsAccountVerified)
	require.NotNil(t, created.OTPCode)
	require.NotNil(t, created.OTPExpiresAt)
	assert.Len(t, *created.OTPCode, 6)
	_, err = strconv.Atoi(*created.OTPCode)
	assert.NoError(t, err)
	assert.NotEqual(t, "secret123", created.PasswordHash)

	assert.Equal(t, []string{"new@example.com"}, sender.OTPEmails)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return &models.Account{ID: "other"}, nil
		},
	}
	sender := &MockEmailSender{}
	svc := newTestAuthService(repo, sender)

	err := svc.Register(context.Background(), "newuser1", "taken@example.com", "secret123")
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Empty(t, sender.OTPEmails)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	repo := &MockAccountRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.Account, error) {
			return &models.Account{ID: "other"}, nil
		},
	}
	svc := newTestAuthService(repo, &MockEmailSender{})

	err := svc.Register(context.Background(), "takenname", "new@example.com", "secret123")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestRegister_InvalidInput(t *testing.T) {
	svc := newTestAuthService(&MockAccountRepository{}, &MockEmailSender{})

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"empty username", "", "a@b.com", "secret123"},
		{"short username", "abc", "a@b.com", "secret123"},
		{"uppercase username", "ABCDEF", "a@b.com", "secret123"},
		{"long username", "abcdefghijklmnopqrstu", "a@b.com", "secret123"},
		{"bad email", "newuser1", "not-an-email", "secret123"},
		{"short password", "newuser1", "a@b.com", "12345"},
		{"empty password", "newuser1", "a@b.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Register(context.Background(), tt.username, tt.email, tt.password)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestRegister_EmailFailurePropagates(t *testing.T) {
	repo := &MockAccountRepository{
		CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			account.ID = "acc-1"
			return account, nil
		},
	}
	sender := &MockEmailSender{
		SendOTPEmailFunc: func(ctx context.Context, email, otp string, expiresAt time.Time) error {
			return errors.New("ses unavailable")
		},
	}
	svc := newTestAuthService(repo, sender)

	err := svc.Register(context.Background(), "newuser1", "new@example.com", "secret123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrInvalidInput)
	assert.NotErrorIs(t, err, models.ErrConflict)
}

func TestVerifyOTP_Success(t *testing.T) {
	code := "042137"
	expiresAt := time.Now().Add(30 * time.Minute)
	var verifiedID string
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return &models.Account{ID: "acc-1", Email: email, OTPCode: &code, OTPExpiresAt: &expiresAt}, nil
		},
		MarkVerifiedFunc: func(ctx context.Context, id string) error {
			verifiedID = id
			return nil
		},
	}
	svc := newTestAuthService(repo, &MockEmailSender{})

	err := svc.VerifyOTP(context.Background(), "tester@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", verifiedID)
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	code := "042137"
	expiresAt := time.Now().Add(30 * time.Minute)
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return &models.Account{ID: "acc-1", OTPCode: &code, OTPExpiresAt: &expiresAt}, nil
		},
	}
	svc := newTestAuthService(repo, &MockEmailSender{})

	err := svc.VerifyOTP(context.Background(), "tester@example.com", "999999")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestVerifyOTP_NoPendingCode(t *testing.T) {
	// A verified account has no stored code; a second submission of the old
	// code must fail.
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return &models.Account{ID: "acc-1", IsAccountVerified: true}, nil
		},
	}
	svc := newTestAuthService(repo, &MockEmailSender{})

	err := svc.VerifyOTP(context.Background(), "tester@example.com", "042137")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestVerifyOTP_Expired(t *testing.T) {
	code := "042137"
	expiresAt := time.Now().Add(-1 * time.Minute)
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return &models.Account{ID: "acc-1", OTPCode: &code, OTPExpiresAt: &expiresAt}, nil
		},
	}
	svc := newTestAuthService(repo, &MockEmailSender{})

	err := svc.VerifyOTP(context.Background(), "tester@example.com", code)
	assert.ErrorIs(t, err, models.ErrExpired)
}

func TestVerifyOTP_UnknownEmail(t *testing.T) {
	svc := newTestAuthService(&MockAccountRepository{}, &MockEmailSender{})

	err := svc.VerifyOTP(context.Background(), "nobody@example.com", "042137")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestResendOTP_Success(t *testing.T) {
	var storedCode string
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return &models.Account{ID: "acc-1", Email: email}, nil
		},
		SetOTPFunc: func(ctx context.Context, id, code string, expiresAt time.Time) error {
			storedCode = code
			return nil
		},
	}
	sender := &MockEmailSender{}
	svc := newTestAuthService(repo, sender)

	err := svc.ResendOTP(context.Background(), "tester@example.com")
	require.NoError(t, err)
	assert.Len(t, storedCode, 6)
	assert.Equal(t, []string{"tester@example.com"}, sender.OTPEmails)
}

func TestResendOTP_AlreadyVerified(t *testing.T) {
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return &models.Account{ID: "acc-1", IsAccountVerified: true}, nil
		},
	}
	sender := &MockEmailSender{}
	svc := newTestAuthService(repo, sender)

	err := svc.ResendOTP(context.Background(), "tester@example.com")
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Empty(t, sender.OTPEmails)
}

func TestLogin_Success(t *testing.T) {
	account := verifiedAccount(t, "secret123")
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}
	sender := &MockEmailSender{}
	svc := newTestAuthService(repo, sender)

	resp, err := svc.Login(context.Background(), "Tester@Example.com", "secret123", "203.0.113.7")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "acc-1", resp.Account.ID)
	assert.True(t, resp.Account.IsAccountVerified)

	// login alert is sent on success
	assert.Equal(t, []string{"tester@example.com"}, sender.AlertEmails)
}

func TestLogin_AlertFailureDoesNotFailLogin(t *testing.T) {
	account := verifiedAccount(t, "secret123")
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}
	sender := &MockEmailSender{
		SendLoginAlertEmailFunc: func(ctx context.Context, email, ipAddress string) error {
			return errors.New("ses unavailable")
		},
	}
	svc := newTestAuthService(repo, sender)

	resp, err := svc.Login(context.Background(), "tester@example.com", "secret123", "")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc := newTestAuthService(&MockAccountRepository{}, &MockEmailSender{})

	_, err := svc.Login(context.Background(), "nobody@example.com", "secret123", "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLogin_WrongPassword(t *testing.T) {
	account := verifiedAccount(t, "secret123")
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}
	svc := newTestAuthService(repo, &MockEmailSender{})

	_, err := svc.Login(context.Background(), "tester@example.com", "wrongpass", "")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestLogin_UnverifiedAccountBlocked(t *testing.T) {
	account := verifiedAccount(t, "secret123")
	account.IsAccountVerified = false
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}
	svc := newTestAuthService(repo, &MockEmailSender{})

	_, err := svc.Login(context.Background(), "tester@example.com", "secret123", "")
	assert.ErrorIs(t, err, models.ErrAccountNotVerified)
}

func TestLogin_UnverifiedOAuthAccountAllowed(t *testing.T) {
	account := verifiedAccount(t, "secret123")
	account.IsAccountVerified = false
	account.IsOAuthAccount = true
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}
	svc := newTestAuthService(repo, &MockEmailSender{})

	resp, err := svc.Login(context.Background(), "tester@example.com", "secret123", "")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
}

func TestLoginOrRegisterOAuth_ExistingAccount(t *testing.T) {
	account := verifiedAccount(t, "secret123")
	var created bool
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
		CreateFunc: func(ctx context.Context, a *models.Account) (*models.Account, error) {
			created = true
			return a, nil
		},
	}
	svc := newTestAuthService(repo, &MockEmailSender{})

	resp, err := svc.LoginOrRegisterOAuth(context.Background(), "tester@example.com", "Tester", "")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.False(t, created, "existing account should not be recreated")
}

func TestLoginOrRegisterOAuth_NewAccount(t *testing.T) {
	var created *models.Account
	repo := &MockAccountRepository{
		CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			account.ID = "acc-new"
			created = account
			return account, nil
		},
	}
	svc := newTestAuthService(repo, &MockEmailSender{})

	resp, err := svc.LoginOrRegisterOAuth(context.Background(), "Jane.Doe@Example.com", "Jane Doe", "https://lh3.example.com/photo.jpg")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	require.NotNil(t, created)
	assert.True(t, created.IsOAuthAccount)
	assert.Equal(t, "jane.doe@example.com", created.Email)
	assert.Equal(t, "https://lh3.example.com/photo.jpg", created.AvatarURL)
	assert.NotEmpty(t, created.PasswordHash)

	// display name lowercased, non-alphanumerics stripped, 4-digit suffix
	require.Len(t, created.Username, len("janedoe")+4)
	assert.Equal(t, "janedoe", created.Username[:7])
	_, err = strconv.Atoi(created.Username[7:])
	assert.NoError(t, err)
}

func TestLoginOrRegisterOAuth_UsernameCollisionRetries(t *testing.T) {
	attempts := 0
	repo := &MockAccountRepository{
		CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			attempts++
			if attempts < 3 {
				return nil, models.ErrConflict
			}
			account.ID = "acc-new"
			return account, nil
		},
	}
	svc := newTestAuthService(repo, &MockEmailSender{})

	resp, err := svc.LoginOrRegisterOAuth(context.Background(), "jane@example.com", "Jane Doe", "")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, 3, attempts)
}

func TestLoginOrRegisterOAuth_InvalidEmail(t *testing.T) {
	svc := newTestAuthService(&MockAccountRepository{}, &MockEmailSender{})

	_, err := svc.LoginOrRegisterOAuth(context.Background(), "not-an-email", "Jane", "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestForgotPassword_Success(t *testing.T) {
	account := verifiedAccount(t, "secret123")
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
	}
	sender := &MockEmailSender{}
	svc := newTestAuthService(repo, sender)

	err := svc.ForgotPassword(context.Background(), "tester@example.com")
	require.NoError(t, err)

	require.Len(t, sender.ResetURLs, 1)
	assert.Contains(t, sender.ResetURLs[0], "https://app.example.com/reset-password/")
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	svc := newTestAuthService(&MockAccountRepository{}, &MockEmailSender{})

	err := svc.ForgotPassword(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestResetPassword_Success(t *testing.T) {
	account := verifiedAccount(t, "oldpassword")
	var newHash string
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return account, nil
		},
		UpdatePasswordFunc: func(ctx context.Context, id, passwordHash string) error {
			newHash = passwordHash
			return nil
		},
	}
	sender := &MockEmailSender{}
	svc := newTestAuthService(repo, sender)

	require.NoError(t, svc.ForgotPassword(context.Background(), "tester@example.com"))
	require.Len(t, sender.ResetURLs, 1)
	token := sender.ResetURLs[0][len("https://app.example.com/reset-password/"):]

	err := svc.ResetPassword(context.Background(), token, "newpassword")
	require.NoError(t, err)
	assert.NoError(t, pkgauth.ComparePassword(newHash, "newpassword"))
}

func TestResetPassword_InvalidToken(t *testing.T) {
	svc := newTestAuthService(&MockAccountRepository{}, &MockEmailSender{})

	err := svc.ResetPassword(context.Background(), "garbage-token", "newpassword")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestResetPassword_SessionTokenRejected(t *testing.T) {
	account := verifiedAccount(t, "secret123")
	repo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return account, nil
		},
	}
	svc := newTestAuthService(repo, &MockEmailSender{})

	sessionToken, err := svc.tm.GenerateSessionToken("acc-1", true, false)
	require.NoError(t, err)

	err = svc.ResetPassword(context.Background(), sessionToken, "newpassword")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestResetPassword_StaleTokenAfterPasswordChange(t *testing.T) {
	account := verifiedAccount(t, "oldpassword")
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return account, nil
		},
	}
	sender := &MockEmailSender{}
	svc := newTestAuthService(repo, sender)

	require.NoError(t, svc.ForgotPassword(context.Background(), "tester@example.com"))
	token := sender.ResetURLs[0][len("https://app.example.com/reset-password/"):]

	// Password changed after the token was issued
	changedAt := time.Now().Add(time.Minute)
	account.PasswordChangedAt = &changedAt

	err := svc.ResetPassword(context.Background(), token, "newpassword")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestResetPassword_TokenIssuedSameSecondAsPasswordChange(t *testing.T) {
	// JWT issued-at has second precision; a change recorded fractionally
	// later within the same second must not invalidate the token.
	account := verifiedAccount(t, "oldpassword")
	repo := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return account, nil
		},
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return account, nil
		},
	}
	sender := &MockEmailSender{}
	svc := newTestAuthService(repo, sender)

	require.NoError(t, svc.ForgotPassword(context.Background(), "tester@example.com"))
	token := sender.ResetURLs[0][len("https://app.example.com/reset-password/"):]

	claims, err := svc.tm.VerifyResetToken(token)
	require.NoError(t, err)

	changedAt := claims.IssuedAt.Time.Add(300 * time.Millisecond)
	account.PasswordChangedAt = &changedAt

	err = svc.ResetPassword(context.Background(), token, "newpassword")
	assert.NoError(t, err)
}

func TestResetPassword_WeakPassword(t *testing.T) {
	svc := newTestAuthService(&MockAccountRepository{}, &MockEmailSender{})

	err := svc.ResetPassword(context.Background(), "any-token", "123")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
