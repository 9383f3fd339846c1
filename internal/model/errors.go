package model

import "errors"

var (
	// Credential errors
	ErrCredentialInvalid = errors.New("invalid credentials")
	ErrIdentityNotFound  = errors.New("identity not found")

	// Token errors
	ErrTokenMissing = errors.New("token missing")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")

	// Permission errors
	ErrRoleDenied = errors.New("role denied")

	ErrValidation = errors.New("validation failed")
)
