package auth

import "errors"

var (
	ErrMissingToken   = errors.New("missing bearer token")
	ErrInvalidToken   = errors.New("invalid bearer token")
	ErrMissingSubject = errors.New("token has no subject")
)
