package auth

import "errors"

var (
	// ErrInvalidCredential covers wrong secrets and unknown identifiers.
	// The two are merged outward to prevent user enumeration.
	ErrInvalidCredential = errors.New("auth: invalid credential")
	// ErrNotAuthorized means the credential was correct but policy denies access.
	ErrNotAuthorized = errors.New("auth: not authorized")
	// ErrDirectoryUnavailable means the directory service could not be used.
	ErrDirectoryUnavailable = errors.New("auth: directory unavailable")
	// ErrTokenInvalid covers malformed tokens and signature failures.
	ErrTokenInvalid = errors.New("auth: invalid token")
	// ErrTokenExpired means the token was valid but its lifetime has passed.
	ErrTokenExpired = errors.New("auth: token expired")

	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
)
