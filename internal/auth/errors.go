package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers every login rejection. Callers outside this
	// package should only ever test for this umbrella.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrNotFound           = fmt.Errorf("%w: identity not found", ErrInvalidCredentials)
	ErrInvalidCredential  = fmt.Errorf("%w: password mismatch", ErrInvalidCredentials)

	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken          = errors.New("auth: invalid token")
	ErrTokenMalformed        = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrTokenSignatureInvalid = fmt.Errorf("%w: signature invalid", ErrInvalidToken)
	ErrTokenExpired          = fmt.Errorf("%w: expired", ErrInvalidToken)

	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrForbidden       = errors.New("auth: forbidden")
)
