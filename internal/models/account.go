package models

import (
	"time"
)

type Account struct {
	ID                string
	Username          string // unique, lowercase, 4-20 alphanumeric chars
	Email             string // unique, trimmed and lowercased
	PasswordHash      string // bcrypt; never serialized
	IsAccountVerified bool
	IsOAuthAccount    bool // OAuth accounts skip the OTP verification gate
	OTPCode           *string
	OTPExpiresAt      *time.Time // nil iff OTPCode is nil
	AvatarURL         string
	PasswordChangedAt *time.Time // last password change, used to reject stale reset tokens
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasPendingOTP reports whether a verification code is currently stored.
func (a *Account) HasPendingOTP() bool {
	return a.OTPCode != nil && a.OTPExpiresAt != nil
}

// OTPExpired reports whether the pending verification code is past its window.
func (a *Account) OTPExpired(now time.Time) bool {
	return a.OTPExpiresAt != nil && !now.Before(*a.OTPExpiresAt)
}
