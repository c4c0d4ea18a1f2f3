package users

import (
	"context"
	"errors"

	"github.com/khanghh/konbase/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TOTPCredentialRepository interface {
	WithTx(tx *gorm.DB) TOTPCredentialRepository
	Upsert(ctx context.Context, credential *model.TOTPCredential) error
	GetByUserID(ctx context.Context, userID string) (*model.TOTPCredential, error)
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}

type totpCredentialRepository struct {
	db *gorm.DB
}

func (r *totpCredentialRepository) WithTx(tx *gorm.DB) TOTPCredentialRepository {
	return NewTOTPCredentialRepository(tx)
}

// Upsert replaces the user's credential in place; a re-setup gets a fresh
// creation time.
func (r *totpCredentialRepository) Upsert(ctx context.Context, credential *model.TOTPCredential) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"secret", "created_at", "updated_at"}),
		}).
		Create(credential).Error
}

func (r *totpCredentialRepository) GetByUserID(ctx context.Context, userID string) (*model.TOTPCredential, error) {
	var credential model.TOTPCredential
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&credential).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	return &credential, nil
}

func (r *totpCredentialRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	ret := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.TOTPCredential{})
	return ret.RowsAffected, ret.Error
}

func NewTOTPCredentialRepository(db *gorm.DB) TOTPCredentialRepository {
	return &totpCredentialRepository{db}
}
