package twofactor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/khanghh/konbase/internal/audit"
	"github.com/khanghh/konbase/internal/users"
	"github.com/khanghh/konbase/params"
	"gorm.io/gorm"
)

// Notifier delivers security notices after a committed change.
type Notifier interface {
	NotifyTwoFactorEnabled(ctx context.Context, email string) error
	NotifyTwoFactorDisabled(ctx context.Context, email string) error
}

type Subject struct {
	UserID string
	Email  string
}

// account is the provisioning URI account label.
func (s Subject) account() string {
	if s.Email != "" {
		return s.Email
	}
	return s.UserID
}

// Options configure the service. Window is used as given, zero accepts only
// the current time step.
type Options struct {
	Issuer           string
	Window           int
	RecoveryKeyCount int
}

type Status struct {
	Enabled               bool
	RecoveryKeysRemaining int64
}

type VerifyOutcome struct {
	VerifyResult
	ServerTime time.Time
}

type TwoFactorService struct {
	db          *gorm.DB
	profileRepo users.ProfileRepository
	credentials *CredentialStore
	auditor     *audit.Recorder
	cipher      *SecretCipher
	notifier    Notifier
	opts        Options
	now         func() time.Time
}

// BeginSetup generates a secret for the subject. Nothing is stored until the
// client confirms it through CompleteSetup or Enroll.
func (s *TwoFactorService) BeginSetup(ctx context.Context, sub Subject) (*SetupKey, error) {
	key, err := GenerateSecret(s.opts.Issuer, sub.account())
	if err != nil {
		return nil, err
	}
	key.QRCode, err = ProvisioningQRCode(key.ProvisioningURI)
	if err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateRecoveryKeys returns a fresh batch. Zero count falls back to the
// configured batch size.
func (s *TwoFactorService) GenerateRecoveryKeys(count int) ([]string, error) {
	if count == 0 {
		count = s.opts.RecoveryKeyCount
	}
	return GenerateRecoveryKeys(count, params.RecoveryKeyMaxCount)
}

// CompleteSetup verifies code against the pending secret, then issues
// recovery keys and enables 2FA. A failed verification stores nothing.
func (s *TwoFactorService) CompleteSetup(ctx context.Context, userID string, secret string, code string) ([]string, error) {
	result, err := s.verifyNow(secret, code)
	if err != nil {
		return nil, err
	}
	if !result.Verified {
		return nil, ErrTOTPVerifyFailed
	}
	keys, err := s.GenerateRecoveryKeys(0)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, userID, secret, keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// Enroll enables 2FA with a secret the client already confirmed and the
// recovery keys it was shown.
func (s *TwoFactorService) Enroll(ctx context.Context, userID string, secret string, recoveryKeys []string) error {
	if stripSpaces(secret) == "" {
		return ErrMissingSecret
	}
	if len(recoveryKeys) == 0 {
		return ErrMissingRecoveryKeys
	}
	return s.commit(ctx, userID, secret, recoveryKeys)
}

func (s *TwoFactorService) commit(ctx context.Context, userID string, secret string, recoveryKeys []string) error {
	secret, ok := NormalizeSecret(secret)
	if !ok {
		return ErrInvalidSecret
	}
	if len(recoveryKeys) > params.RecoveryKeyMaxCount {
		return ErrTooManyRecoveryKeys
	}
	seen := make(map[string]struct{}, len(recoveryKeys))
	hashes := make([]string, 0, len(recoveryKeys))
	for _, key := range recoveryKeys {
		normalized, ok := NormalizeRecoveryKey(key)
		if !ok {
			return ErrInvalidRecoveryKey
		}
		// each stored row must map to a distinct key or it could be redeemed twice
		if _, dup := seen[normalized]; dup {
			return ErrDuplicateRecoveryKey
		}
		seen[normalized] = struct{}{}
		hash, err := HashRecoveryKey(normalized)
		if err != nil {
			return err
		}
		hashes = append(hashes, hash)
	}
	sealed, err := s.cipher.Seal(userID, secret)
	if err != nil {
		return err
	}

	var email string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := s.profileRepo.WithTx(tx).GetByID(ctx, userID)
		if err != nil {
			return err
		}
		email = profile.Email

		credentials := s.credentials.WithTx(tx)
		_, err = credentials.LoadCredential(ctx, userID)
		replaced := err == nil
		if err != nil && !errors.Is(err, ErrTOTPNotEnrolled) {
			return err
		}
		if err := credentials.SaveCredential(ctx, userID, sealed, hashes); err != nil {
			return err
		}
		if _, err := s.profileRepo.WithTx(tx).SetTwoFactorEnabled(ctx, userID, true); err != nil {
			return err
		}
		return s.auditor.WithTx(tx).RecordSetup(ctx, audit.TwoFASetupRecord{
			UserID:           userID,
			RecoveryKeyCount: len(hashes),
			Replaced:         replaced,
		})
	})
	if err != nil {
		return err
	}
	s.notify(ctx, userID, email, s.notifier.NotifyTwoFactorEnabled)
	return nil
}

func (s *TwoFactorService) verifyNow(secret string, code string) (VerifyResult, error) {
	return VerifyAt(secret, code, s.opts.Window, s.now())
}

// Verify checks a code against a caller supplied secret. It touches no
// stored state.
func (s *TwoFactorService) Verify(secret string, code string) (*VerifyOutcome, error) {
	now := s.now()
	result, err := VerifyAt(secret, code, s.opts.Window, now)
	if err != nil {
		return nil, err
	}
	return &VerifyOutcome{VerifyResult: result, ServerTime: now}, nil
}

// VerifyLogin checks code against the user's stored secret. It is read-only;
// rate limiting belongs to the caller.
func (s *TwoFactorService) VerifyLogin(ctx context.Context, userID string, code string) (bool, error) {
	if stripSpaces(code) == "" {
		return false, ErrMissingCode
	}
	credential, err := s.credentials.LoadCredential(ctx, userID)
	if err != nil {
		return false, err
	}
	secret, err := s.cipher.Open(userID, credential.Secret)
	if err != nil {
		return false, err
	}
	result, err := s.verifyNow(secret, code)
	if err != nil {
		return false, err
	}
	return result.Verified, nil
}

// RedeemRecoveryKey consumes key if it matches one of the user's unconsumed
// keys. Only the first of concurrent redemptions of the same key succeeds.
func (s *TwoFactorService) RedeemRecoveryKey(ctx context.Context, userID string, key string) (bool, error) {
	if stripSpaces(key) == "" {
		return false, ErrMissingRecoveryKey
	}
	if _, ok := NormalizeRecoveryKey(key); !ok {
		return false, nil
	}
	candidates, err := s.credentials.UnconsumedRecoveryKeys(ctx, userID)
	if err != nil {
		return false, err
	}
	var matched uint
	var matchedHash string
	for _, candidate := range candidates {
		if CompareRecoveryKey(candidate.KeyHash, key) {
			matched, matchedHash = candidate.ID, candidate.KeyHash
			break
		}
	}
	if matchedHash == "" {
		return false, nil
	}

	redeemed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.credentials.WithTx(tx).MarkRecoveryKeyConsumed(ctx, userID, matchedHash)
		if err != nil || !ok {
			return err
		}
		redeemed = true
		return s.auditor.WithTx(tx).RecordRecoveryKeyRedeemed(ctx, audit.RecoveryKeyRedeemedRecord{
			UserID:        userID,
			RecoveryKeyID: matched,
			RedeemedAt:    s.now(),
		})
	})
	if err != nil {
		return false, err
	}
	return redeemed, nil
}

// Disable removes the credential and recovery keys and clears the enabled
// flag. Disabling an account that has nothing to remove is a no-op.
func (s *TwoFactorService) Disable(ctx context.Context, userID string) error {
	var (
		email   string
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profileRepo := s.profileRepo.WithTx(tx)
		profile, err := profileRepo.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		email = profile.Email

		removed, err := s.credentials.WithTx(tx).DeleteCredential(ctx, userID)
		if err != nil {
			return err
		}
		if !removed && !profile.TwoFactorEnabled {
			return nil
		}
		if _, err := profileRepo.SetTwoFactorEnabled(ctx, userID, false); err != nil {
			return err
		}
		changed = true
		return s.auditor.WithTx(tx).RecordDisable(ctx, audit.TwoFADisableRecord{
			UserID:            userID,
			CredentialRemoved: removed,
		})
	})
	if err != nil {
		return err
	}
	if changed {
		s.notify(ctx, userID, email, s.notifier.NotifyTwoFactorDisabled)
	}
	return nil
}

func (s *TwoFactorService) Status(ctx context.Context, userID string) (*Status, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	remaining, err := s.credentials.CountRecoveryKeys(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Status{
		Enabled:               profile.TwoFactorEnabled,
		RecoveryKeysRemaining: remaining,
	}, nil
}

func (s *TwoFactorService) notify(ctx context.Context, userID string, email string, send func(context.Context, string) error) {
	if email == "" {
		return
	}
	if err := send(ctx, email); err != nil {
		slog.Warn("Failed to send security notification", "userID", userID, "error", err)
	}
}

func NewTwoFactorService(db *gorm.DB, profileRepo users.ProfileRepository, credentials *CredentialStore, auditor *audit.Recorder, cipher *SecretCipher, notifier Notifier, opts Options) *TwoFactorService {
	if opts.RecoveryKeyCount == 0 {
		opts.RecoveryKeyCount = params.RecoveryKeyDefaultCount
	}
	return &TwoFactorService{
		db:          db,
		profileRepo: profileRepo,
		credentials: credentials,
		auditor:     auditor,
		cipher:      cipher,
		notifier:    notifier,
		opts:        opts,
		now:         time.Now,
	}
}
