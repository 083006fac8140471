// Package auth contains the identity core: password hashing, token issuance
// and the error taxonomy shared by the service and handler layers.
package auth

import "errors"

// Sentinel errors returned by the auth service. Handlers branch on these to
// pick an HTTP status; anything else is treated as an internal error and
// must be logged by the caller.
var (
	// ErrInvalidCredentials is returned on any email/password mismatch. It is
	// deliberately uniform: callers cannot tell whether the email or the
	// password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a lockout window is in effect.
	ErrAccountLocked = errors.New("account locked")
	// ErrEmailNotConfirmed is returned when confirmed-email enforcement is on
	// and the account has not verified its address.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrEmailExists is returned when registering with an email already in use.
	ErrEmailExists = errors.New("email already exists")
	// ErrUsernameTaken is returned when registering with a username already in use.
	ErrUsernameTaken = errors.New("username taken")
	// ErrInvalidToken covers refresh tokens that are unknown, already used or
	// revoked. The three cases map to one error so a probing attacker learns
	// nothing about the state of a stolen token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for refresh tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrUserNotFound is returned when an operation references a user that
	// does not exist or is soft-deleted.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccessDenied is an authorization failure, distinct from the
	// authentication failures above.
	ErrAccessDenied = errors.New("access denied")
	// ErrValidation is returned for malformed input, e.g. an unsupported
	// resource type in a permission check.
	ErrValidation = errors.New("validation error")
)
