// Package auth issues and validates bearer tokens and keeps the user registry.
package auth

import "errors"

// Sentinel errors for authentication and registration.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")

	ErrUserExists    = errors.New("auth: username already registered")
	ErrInvalidSignup = errors.New("auth: username and password are required")
	ErrPasswordLong  = errors.New("auth: password exceeds 72 bytes")
)
