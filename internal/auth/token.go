package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MattHolloway/gatekeep/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager handles signing and verification of session and password
// reset tokens. Both kinds are HS256 JWTs signed with the process-wide secret;
// a purpose claim keeps them from being interchangeable.
type TokenManager struct {
	secret        string
	sessionExpiry time.Duration
	resetExpiry   time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, sessionExpiry, resetExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:        secret,
		sessionExpiry: sessionExpiry,
		resetExpiry:   resetExpiry,
	}
}

// GenerateSessionToken creates the signed credential carried in the
// access_token cookie after a successful login.
func (tm *TokenManager) GenerateSessionToken(accountID string, verified, oauth bool) (string, error) {
	now := time.Now()
	claims := &models.SessionClaims{
		Purpose:           models.TokenPurposeSession,
		AccountID:         accountID,
		IsAccountVerified: verified,
		IsOAuthAccount:    oauth,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.sessionExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// VerifySessionToken verifies a session token and returns its claims.
// Returns models.ErrExpired past validity, models.ErrInvalidInput for
// malformed or tampered tokens and for tokens of another purpose.
func (tm *TokenManager) VerifySessionToken(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, tm.keyFunc)
	if err != nil {
		return nil, mapTokenError(err)
	}

	if !token.Valid || claims.Purpose != models.TokenPurposeSession || claims.AccountID == "" {
		return nil, models.ErrInvalidInput
	}

	return claims, nil
}

// GenerateResetToken creates a short-lived token bound to the account id,
// embedded in the emailed password reset link.
func (tm *TokenManager) GenerateResetToken(accountID string) (string, error) {
	now := time.Now()
	claims := &models.ResetClaims{
		Purpose:   models.TokenPurposePasswordReset,
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.resetExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}

	return tokenString, nil
}

// VerifyResetToken verifies a password reset token and returns its claims.
// Error mapping matches VerifySessionToken; session tokens are rejected.
func (tm *TokenManager) VerifyResetToken(tokenString string) (*models.ResetClaims, error) {
	claims := &models.ResetClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, tm.keyFunc)
	if err != nil {
		return nil, mapTokenError(err)
	}

	if !token.Valid || claims.Purpose != models.TokenPurposePasswordReset || claims.AccountID == "" {
		return nil, models.ErrInvalidInput
	}

	return claims, nil
}

func (tm *TokenManager) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return []byte(tm.secret), nil
}

// mapTokenError distinguishes an elapsed validity window from every other
// verification failure, so callers can surface Expired separately.
func mapTokenError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return models.ErrExpired
	}
	return models.ErrInvalidInput
}
