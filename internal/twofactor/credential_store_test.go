package twofactor

import (
	"context"
	"testing"

	"github.com/khanghh/konbase/internal/dbtest"
	"github.com/khanghh/konbase/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialStore(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	s := NewCredentialStore(db, users.NewTOTPCredentialRepository(db), users.NewRecoveryKeyRepository(db))

	_, err := s.LoadCredential(ctx, "u1")
	require.ErrorIs(t, err, ErrTOTPNotEnrolled)

	require.NoError(t, s.SaveCredential(ctx, "u1", "sealed-1", []string{"h1", "h2"}))
	require.NoError(t, s.SaveCredential(ctx, "u1", "sealed-2", []string{"h3"}))

	credential, err := s.LoadCredential(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "sealed-2", credential.Secret)

	keys, err := s.UnconsumedRecoveryKeys(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "h3", keys[0].KeyHash)

	ok, err := s.MarkRecoveryKeyConsumed(ctx, "u1", "h1")
	require.NoError(t, err)
	assert.False(t, ok, "replaced key")

	ok, err = s.MarkRecoveryKeyConsumed(ctx, "u1", "h3")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.MarkRecoveryKeyConsumed(ctx, "u1", "h3")
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := s.DeleteCredential(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.DeleteCredential(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, removed)

	count, err := s.CountRecoveryKeys(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
