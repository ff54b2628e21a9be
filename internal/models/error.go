package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")
	ErrExpired        = errors.New("expired")
	ErrInternalServer = errors.New("internal server error")

	// Login is blocked until the account's email is verified via OTP,
	// unless the account was created through an OAuth provider.
	ErrAccountNotVerified = errors.New("account email not verified")
)
