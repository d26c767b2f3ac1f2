package token

import "errors"

var (
	// ErrInvalidToken marks a token whose signature or structure is bad.
	// Always a client error, never retried.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken marks a well-signed token past its expiry. Validation
	// treats it as unauthenticated; invalidation treats it as already done.
	ErrExpiredToken = errors.New("token expired")
)
