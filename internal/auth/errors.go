package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is the single external failure for a login
	// attempt. Unknown email, wrong password and inactive account all
	// collapse into it so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenInvalid covers bad signature, malformed structure and expiry.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrTokenExpired is distinguishable from ErrTokenInvalid only for
	// internal diagnostics; it still matches ErrTokenInvalid with errors.Is.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrTokenInvalid)

	// ErrNotFound is the store-level "no such row" outcome, distinct from
	// infrastructure failure.
	ErrNotFound = errors.New("auth: not found")

	// ErrAlreadyExists signals a unique constraint conflict, in practice a
	// duplicate email on registration.
	ErrAlreadyExists = errors.New("auth: already exists")

	// ErrResourceNotFound means the record named by a resource reference
	// does not exist. It is not a denial; callers surface it as a 404.
	ErrResourceNotFound = errors.New("auth: resource not found")

	// ErrInvalidInput rejects malformed arguments before they reach the store.
	ErrInvalidInput = errors.New("auth: invalid input")
)
