package api

import (
	"context"

	"github.com/khanghh/konbase/internal/elevation"
	"github.com/khanghh/konbase/internal/twofactor"
)

type TwoFactorService interface {
	BeginSetup(ctx context.Context, sub twofactor.Subject) (*twofactor.SetupKey, error)
	GenerateRecoveryKeys(count int) ([]string, error)
	Enroll(ctx context.Context, userID string, secret string, recoveryKeys []string) error
	CompleteSetup(ctx context.Context, userID string, secret string, code string) ([]string, error)
	Verify(secret string, code string) (*twofactor.VerifyOutcome, error)
	VerifyLogin(ctx context.Context, userID string, code string) (bool, error)
	RedeemRecoveryKey(ctx context.Context, userID string, key string) (bool, error)
	Disable(ctx context.Context, userID string) error
	Status(ctx context.Context, userID string) (*twofactor.Status, error)
}

type AttemptLimiter interface {
	Check(ctx context.Context, userID string) error
	RecordFailure(ctx context.Context, userID string) error
	Reset(ctx context.Context, userID string) error
}

type ElevationGate interface {
	Elevate(ctx context.Context, userID string, submittedSecret string) (*elevation.Result, error)
}
