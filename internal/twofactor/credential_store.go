package twofactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/khanghh/konbase/internal/users"
	"github.com/khanghh/konbase/model"
	"gorm.io/gorm"
)

// CredentialStore persists TOTP credentials and their recovery key batches.
// Values reaching it are already sealed or hashed.
type CredentialStore struct {
	db              *gorm.DB
	credentialRepo  users.TOTPCredentialRepository
	recoveryKeyRepo users.RecoveryKeyRepository
}

// WithTx returns a store whose operations run inside tx.
func (s *CredentialStore) WithTx(tx *gorm.DB) *CredentialStore {
	return &CredentialStore{
		db:              tx,
		credentialRepo:  s.credentialRepo.WithTx(tx),
		recoveryKeyRepo: s.recoveryKeyRepo.WithTx(tx),
	}
}

// SaveCredential upserts the credential and swaps the recovery key batch in
// one transaction, so readers see either the old batch or the new one.
func (s *CredentialStore) SaveCredential(ctx context.Context, userID string, sealedSecret string, keyHashes []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		credential := &model.TOTPCredential{
			UserID:    userID,
			Secret:    sealedSecret,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.credentialRepo.WithTx(tx).Upsert(ctx, credential); err != nil {
			return fmt.Errorf("upsert credential: %w", err)
		}

		keyRepo := s.recoveryKeyRepo.WithTx(tx)
		if _, err := keyRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("delete recovery keys: %w", err)
		}
		keys := make([]*model.RecoveryKey, 0, len(keyHashes))
		for _, hash := range keyHashes {
			keys = append(keys, &model.RecoveryKey{UserID: userID, KeyHash: hash})
		}
		if err := keyRepo.CreateBatch(ctx, keys); err != nil {
			return fmt.Errorf("insert recovery keys: %w", err)
		}
		return nil
	})
}

// LoadCredential returns ErrTOTPNotEnrolled when the user has no credential.
func (s *CredentialStore) LoadCredential(ctx context.Context, userID string) (*model.TOTPCredential, error) {
	credential, err := s.credentialRepo.GetByUserID(ctx, userID)
	if errors.Is(err, users.ErrCredentialNotFound) {
		return nil, ErrTOTPNotEnrolled
	}
	return credential, err
}

// DeleteCredential removes the credential and every recovery key of the
// user. It reports whether a credential existed.
func (s *CredentialStore) DeleteCredential(ctx context.Context, userID string) (bool, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if _, err = s.recoveryKeyRepo.WithTx(tx).DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("delete recovery keys: %w", err)
		}
		if deleted, err = s.credentialRepo.WithTx(tx).DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("delete credential: %w", err)
		}
		return nil
	})
	return deleted > 0, err
}

// MarkRecoveryKeyConsumed flips the key with the given stored hash to
// consumed. It returns false, not an error, when the key is unknown or
// already consumed.
func (s *CredentialStore) MarkRecoveryKeyConsumed(ctx context.Context, userID string, keyHash string) (bool, error) {
	affected, err := s.recoveryKeyRepo.MarkConsumed(ctx, userID, keyHash, time.Now())
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *CredentialStore) UnconsumedRecoveryKeys(ctx context.Context, userID string) ([]*model.RecoveryKey, error) {
	return s.recoveryKeyRepo.FindUnconsumed(ctx, userID)
}

func (s *CredentialStore) CountRecoveryKeys(ctx context.Context, userID string) (int64, error) {
	return s.recoveryKeyRepo.CountUnconsumed(ctx, userID)
}

func NewCredentialStore(db *gorm.DB, credentialRepo users.TOTPCredentialRepository, recoveryKeyRepo users.RecoveryKeyRepository) *CredentialStore {
	return &CredentialStore{
		db:              db,
		credentialRepo:  credentialRepo,
		recoveryKeyRepo: recoveryKeyRepo,
	}
}
