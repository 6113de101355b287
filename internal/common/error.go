// Package common defines shared constants and sentinel errors used across
// client and server layers of shopsync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrAlreadyExists  = errors.New("already exists")

	// Sync errors.
	ErrValidation       = errors.New("validation error")
	ErrUnknownKind      = errors.New("unknown record kind")
	ErrConcurrentUpdate = errors.New("concurrent update, retries exhausted")
	ErrIdentityConflict = errors.New("identity conflict")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
