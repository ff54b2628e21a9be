package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token purposes embedded in claims so one token kind cannot stand in for another.
const (
	TokenPurposeSession       = "session"
	TokenPurposePasswordReset = "password_reset"
)

// SessionClaims is the payload of the 24h session token carried in the
// access_token cookie.
type SessionClaims struct {
	Purpose           string `json:"purpose"`
	AccountID         string `json:"account_id"`
	IsAccountVerified bool   `json:"is_account_verified"`
	IsOAuthAccount    bool   `json:"is_oauth_account"`
	jwt.RegisteredClaims
}

// ResetClaims is the payload of the short-lived password reset token embedded
// in the emailed reset link.
type ResetClaims struct {
	Purpose   string `json:"purpose"`
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}
