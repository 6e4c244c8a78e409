// Package common defines shared constants and sentinel errors used across
// client and server layers of authkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// ErrStoreFailure marks any underlying persistence failure. The wrapped
	// driver error is for server-side logs only.
	ErrStoreFailure = errors.New("database operation failed")

	// ErrorInternal covers any other unexpected server-side failure.
	ErrorInternal = errors.New("internal error")

	// Service-level errors returned to the boundary unchanged.
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccessTokenExpired  = errors.New("access token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrUserNotFound        = errors.New("user not found")

	// Request-authentication errors.
	ErrorUnauthorized = errors.New("not authorized")
	ErrorForbidden    = errors.New("operation forbidden")

	// Validation errors.
	ErrorValidation = errors.New("validation error")

	// Token codec errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenTypeMismatch   = errors.New("token type mismatch")
	ErrTokenMissingExpiry  = errors.New("token has no expiry")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenMissingSubject = errors.New("token has no subject")
)
