package auth

import "errors"

// Sentinel errors mapped to the wire envelope at the handler boundary.
var (
	// ErrSMSCooldown covers both the per-scope cooldown and the SMS quota.
	ErrSMSCooldown = errors.New("sms cooldown exceeded")

	// ErrOTPExpired covers missing, expired, superseded, already-consumed
	// and mismatched codes. Collapsing them avoids leaking which one it was.
	ErrOTPExpired = errors.New("otp code is expired")

	ErrBusinessRequired   = errors.New("business id is required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token is invalid or revoked")
)
