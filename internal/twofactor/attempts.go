package twofactor

import (
	"context"
	"errors"
	"time"

	"github.com/khanghh/konbase/internal/store"
	"github.com/khanghh/konbase/params"
)

const (
	attrFailCount   = "fail_count"
	attrLockedUntil = "locked_until"
)

// AttemptLimiter counts failed verifications per user and locks the user
// out once the count reaches the limit. Counters expire after the lockout
// duration.
type AttemptLimiter struct {
	storage     store.Storage
	maxFails    int64
	lockoutTime time.Duration
	now         func() time.Time
}

// Check returns a *LockedError while the user is locked out.
func (l *AttemptLimiter) Check(ctx context.Context, userID string) error {
	var lockedUntil int64
	err := l.storage.GetAttr(ctx, userID, attrLockedUntil, &lockedUntil)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	until := time.Unix(lockedUntil, 0)
	if l.now().Before(until) {
		return NewLockedError(until)
	}
	return nil
}

// RecordFailure counts one failed attempt and returns a *LockedError when
// this failure reached the limit.
func (l *AttemptLimiter) RecordFailure(ctx context.Context, userID string) error {
	failCount, err := l.storage.IncrAttr(ctx, userID, attrFailCount, 1)
	if err != nil {
		return err
	}
	expiresAt := l.now().Add(l.lockoutTime)
	if err := l.storage.Expire(ctx, userID, expiresAt); err != nil {
		return err
	}
	if failCount < l.maxFails {
		return nil
	}
	if err := l.storage.SetAttr(ctx, userID, attrLockedUntil, expiresAt.Unix()); err != nil {
		return err
	}
	return NewLockedError(expiresAt)
}

func (l *AttemptLimiter) Reset(ctx context.Context, userID string) error {
	err := l.storage.Delete(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func NewAttemptLimiter(storage store.Storage) *AttemptLimiter {
	return &AttemptLimiter{
		storage:     store.StorageWithPrefix(storage, params.AttemptStateKeyPrefix),
		maxFails:    params.TwoFactorMaxFailCount,
		lockoutTime: params.TwoFactorLockoutDuration,
		now:         time.Now,
	}
}
