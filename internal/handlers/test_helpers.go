package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MattHolloway/gatekeep/internal/auth"
	"github.com/MattHolloway/gatekeep/internal/models"
	"github.com/MattHolloway/gatekeep/internal/services"
	pkghttp "github.com/MattHolloway/gatekeep/pkg/http"
)

// MockAuthService implements AuthServiceInterface with function fields
type MockAuthService struct {
	RegisterFunc             func(ctx context.Context, username, email, password string) error
	VerifyOTPFunc            func(ctx context.Context, email, otp string) error
	ResendOTPFunc            func(ctx context.Context, email string) error
	LoginFunc                func(ctx context.Context, email, password, ipAddress string) (*services.LoginResponse, error)
	LoginOrRegisterOAuthFunc func(ctx context.Context, email, displayName, avatarURL string) (*services.LoginResponse, error)
	ForgotPasswordFunc       func(ctx context.Context, email string) error
	ResetPasswordFunc        func(ctx context.Context, token, newPassword string) error
}

func (m *MockAuthService) Register(ctx context.Context, username, email, password string) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, username, email, password)
	}
	return nil
}

func (m *MockAuthService) VerifyOTP(ctx context.Context, email, otp string) error {
	if m.VerifyOTPFunc != nil {
		return m.VerifyOTPFunc(ctx, email, otp)
	}
	return nil
}

func (m *MockAuthService) ResendOTP(ctx context.Context, email string) error {
	if m.ResendOTPFunc != nil {
		return m.ResendOTPFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ipAddress string) (*services.LoginResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, ipAddress)
	}
	return &services.LoginResponse{Token: "mock-token", Account: &services.AccountResponse{ID: "acc-1"}}, nil
}

func (m *MockAuthService) LoginOrRegisterOAuth(ctx context.Context, email, displayName, avatarURL string) (*services.LoginResponse, error) {
	if m.LoginOrRegisterOAuthFunc != nil {
		return m.LoginOrRegisterOAuthFunc(ctx, email, displayName, avatarURL)
	}
	return &services.LoginResponse{Token: "mock-token", Account: &services.AccountResponse{ID: "acc-1"}}, nil
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	if m.ForgotPasswordFunc != nil {
		return m.ForgotPasswordFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, token, newPassword)
	}
	return nil
}

// MockAccountService implements AccountServiceInterface with function fields
type MockAccountService struct {
	GetProfileFunc    func(ctx context.Context, accountID string) (*services.AccountResponse, error)
	UpdateProfileFunc func(ctx context.Context, accountID string, input services.UpdateProfileInput) (*services.AccountResponse, error)
}

func (m *MockAccountService) GetProfile(ctx context.Context, accountID string) (*services.AccountResponse, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, accountID)
	}
	return &services.AccountResponse{ID: accountID}, nil
}

func (m *MockAccountService) UpdateProfile(ctx context.Context, accountID string, input services.UpdateProfileInput) (*services.AccountResponse, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, accountID, input)
	}
	return &services.AccountResponse{ID: accountID}, nil
}

func newTestAuthHandler(service *MockAuthService) *AuthHandler {
	return NewAuthHandler(service, pkghttp.DefaultIPConfig(), auth.CookieConfig{SameSite: "lax"}, 86400)
}

// NewTestRequest builds a JSON request with the given body
func NewTestRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithURLParam attaches a chi route parameter to the request context
func WithURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// WithSessionContext attaches session claims, as RequireAuth would
func WithSessionContext(r *http.Request, accountID string) *http.Request {
	claims := &models.SessionClaims{
		Purpose:           models.TokenPurposeSession,
		AccountID:         accountID,
		IsAccountVerified: true,
	}
	return r.WithContext(context.WithValue(r.Context(), auth.SessionContextKey, claims))
}

// AssertErrorResponse decodes the error body and checks status and code
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	assert.Equal(t, wantStatus, w.Code)

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, wantCode, resp.Error)
}
