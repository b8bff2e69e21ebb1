package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("resource not found")
	ErrConflict           = errors.New("resource already exists")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInternalServer     = errors.New("internal server error")

	// Token errors
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")

	// Login errors
	ErrInvalidCode    = errors.New("invalid verification code")
	ErrSessionRevoked = errors.New("session revoked")

	// Account linking errors
	ErrLastLoginMethod = errors.New("cannot remove last login method")
)
