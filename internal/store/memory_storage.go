package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cast"
)

type memoryEntry struct {
	fields    map[string]any
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStorage keeps hashes in process memory. It backs single-node
// deployments without redis.
type MemoryStorage struct {
	mtx     sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// entry returns the live entry for key, dropping it if expired.
func (s *MemoryStorage) entry(key string, create bool) *memoryEntry {
	e, ok := s.entries[key]
	if ok && e.expired(s.now()) {
		delete(s.entries, key)
		ok = false
	}
	if !ok && create {
		e = &memoryEntry{fields: make(map[string]any)}
		s.entries[key] = e
		ok = true
	}
	if !ok {
		return nil
	}
	return e
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.entry(key, false) == nil {
		return ErrNotFound
	}
	delete(s.entries, key)
	return nil
}

func (s *MemoryStorage) Expire(ctx context.Context, key string, expiresAt time.Time) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if e := s.entry(key, false); e != nil {
		e.expiresAt = expiresAt
	}
	return nil
}

func (s *MemoryStorage) SetAttr(ctx context.Context, key string, field string, val any) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.entry(key, true).fields[field] = val
	return nil
}

func (s *MemoryStorage) GetAttr(ctx context.Context, key, field string, val any) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	e := s.entry(key, false)
	if e == nil {
		return ErrNotFound
	}
	raw, ok := e.fields[field]
	if !ok {
		return ErrNotFound
	}
	var err error
	switch v := val.(type) {
	case *int64:
		*v, err = cast.ToInt64E(raw)
	case *int:
		*v, err = cast.ToIntE(raw)
	case *string:
		*v, err = cast.ToStringE(raw)
	default:
		return fmt.Errorf("unsupported attribute type %T", val)
	}
	return err
}

func (s *MemoryStorage) IncrAttr(ctx context.Context, key, field string, delta int64) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	e := s.entry(key, true)
	current, err := cast.ToInt64E(e.fields[field])
	if err != nil {
		return 0, err
	}
	current += delta
	e.fields[field] = current
	return current, nil
}

func NewMemoryStorage() *MemoryStorage {
	return NewMemoryStorageWithClock(time.Now)
}

// NewMemoryStorageWithClock expires entries against now instead of the wall
// clock. Callers computing expiry times must share the same clock.
func NewMemoryStorageWithClock(now func() time.Time) *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[string]*memoryEntry),
		now:     now,
	}
}
