package users

import "errors"

var (
	ErrProfileNotFound    = errors.New("profile not found")
	ErrCredentialNotFound = errors.New("totp credential not found")
)
