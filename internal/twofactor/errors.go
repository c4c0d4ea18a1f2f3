package twofactor

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingSecret         = errors.New("secret is required")
	ErrMissingCode           = errors.New("verification code is required")
	ErrMissingRecoveryKeys   = errors.New("recovery keys are required")
	ErrMissingRecoveryKey    = errors.New("recovery key is required")
	ErrInvalidSecret         = errors.New("secret is not a valid base32 TOTP secret")
	ErrInvalidRecoveryKey    = errors.New("recovery key has an invalid format")
	ErrTooManyRecoveryKeys   = errors.New("too many recovery keys")
	ErrDuplicateRecoveryKey  = errors.New("recovery keys must be unique")
	ErrTOTPNotEnrolled       = errors.New("TOTP not enrolled")
	ErrTOTPVerifyFailed      = errors.New("TOTP verification failed")
	ErrSecretGeneration      = errors.New("failed to generate TOTP secret")
	ErrRecoveryKeyGeneration = errors.New("failed to generate recovery keys")
	ErrSecretSealing         = errors.New("failed to seal TOTP secret")
	ErrSecretOpening         = errors.New("failed to open TOTP secret")
	ErrTooManyFailedAttempts = errors.New("too many failed attempts")
)

// LockedError reports a user locked out of verification until a given time.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("verification locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrTooManyFailedAttempts
}

func NewLockedError(until time.Time) *LockedError {
	return &LockedError{Until: until}
}
