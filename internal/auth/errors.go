package auth

import "errors"

var (
	// ErrHashing reports an entropy or computation failure, or a stored hash
	// that cannot be parsed.
	ErrHashing = errors.New("password hashing failed")
	// ErrSigning reports a token that could not be signed.
	ErrSigning = errors.New("token signing failed")

	// ErrMalformed reports a token that is not a well-formed HS256 JWT.
	ErrMalformed = errors.New("token malformed")
	// ErrInvalidSignature reports a token signed with a different key or algorithm.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired reports a token at or past its exp claim.
	ErrExpired = errors.New("token expired")
)

var (
	// ErrUnauthenticated reports a request without a usable bearer credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidToken covers every verification failure once a token was presented.
	ErrInvalidToken = errors.New("invalid token")
)
