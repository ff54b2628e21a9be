package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// OTPLength is the number of decimal digits in a verification code.
const OTPLength = 6

var otpMax = big.NewInt(1000000)

// GenerateOTP returns a uniformly random 6-digit decimal code, zero-padded.
// The code is stored server-side against the account and compared by exact
// string equality; it is not a signed token.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
