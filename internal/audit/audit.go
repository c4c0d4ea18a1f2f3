package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/khanghh/konbase/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionSetupTwoFA          = "setup_2fa"
	ActionDisableTwoFA        = "disable_2fa"
	ActionElevateToSuperAdmin = "elevate_to_super_admin"
	ActionRedeemRecoveryKey   = "redeem_recovery_key"
)

const (
	EntityProfiles    = "profiles"
	EntityRecoveryKey = "recovery_key"
)

type TwoFASetupRecord struct {
	UserID           string
	RecoveryKeyCount int
	Replaced         bool // an earlier credential was overwritten
}

type TwoFADisableRecord struct {
	UserID            string
	CredentialRemoved bool
}

type ElevationRecord struct {
	UserID       string
	PreviousRole string
	NewRole      string
	ElevatedAt   time.Time
}

type RecoveryKeyRedeemedRecord struct {
	UserID        string
	RecoveryKeyID uint
	RedeemedAt    time.Time
}

// Recorder writes one audit row per state change. Bind it to the
// transaction of the change with WithTx so both commit or neither does.
type Recorder struct {
	repo AuditLogRepository
}

func (r *Recorder) WithTx(tx *gorm.DB) *Recorder {
	return &Recorder{repo: r.repo.WithTx(tx)}
}

func (r *Recorder) RecordSetup(ctx context.Context, record TwoFASetupRecord) error {
	return r.repo.Create(ctx, &model.AuditLog{
		UserID:   record.UserID,
		Action:   ActionSetupTwoFA,
		Entity:   EntityProfiles,
		EntityID: record.UserID,
		Changes: datatypes.JSONMap{
			"two_factor_enabled": true,
			"recovery_keys":      record.RecoveryKeyCount,
			"replaced":           record.Replaced,
		},
	})
}

func (r *Recorder) RecordDisable(ctx context.Context, record TwoFADisableRecord) error {
	return r.repo.Create(ctx, &model.AuditLog{
		UserID:   record.UserID,
		Action:   ActionDisableTwoFA,
		Entity:   EntityProfiles,
		EntityID: record.UserID,
		Changes: datatypes.JSONMap{
			"two_factor_enabled": false,
			"credential_removed": record.CredentialRemoved,
		},
	})
}

func (r *Recorder) RecordElevation(ctx context.Context, record ElevationRecord) error {
	return r.repo.Create(ctx, &model.AuditLog{
		UserID:   record.UserID,
		Action:   ActionElevateToSuperAdmin,
		Entity:   EntityProfiles,
		EntityID: record.UserID,
		Changes: datatypes.JSONMap{
			"previous_role": record.PreviousRole,
			"new_role":      record.NewRole,
			"timestamp":     record.ElevatedAt.UTC().Format(time.RFC3339),
		},
	})
}

func (r *Recorder) RecordRecoveryKeyRedeemed(ctx context.Context, record RecoveryKeyRedeemedRecord) error {
	return r.repo.Create(ctx, &model.AuditLog{
		UserID:   record.UserID,
		Action:   ActionRedeemRecoveryKey,
		Entity:   EntityRecoveryKey,
		EntityID: strconv.FormatUint(uint64(record.RecoveryKeyID), 10),
		Changes: datatypes.JSONMap{
			"consumed":    true,
			"consumed_at": record.RedeemedAt.UTC().Format(time.RFC3339),
		},
	})
}

func (r *Recorder) Entries(ctx context.Context, userID string) ([]*model.AuditLog, error) {
	return r.repo.FindByUserID(ctx, userID)
}

func NewRecorder(repo AuditLogRepository) *Recorder {
	return &Recorder{repo: repo}
}
