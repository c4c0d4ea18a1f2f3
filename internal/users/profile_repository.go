package users

import (
	"context"
	"errors"

	"github.com/khanghh/konbase/model"
	"gorm.io/gorm"
)

const (
	ColProfileRole             = "role"
	ColProfileTwoFactorEnabled = "two_factor_enabled"
)

type ProfileRepository interface {
	WithTx(tx *gorm.DB) ProfileRepository
	Create(ctx context.Context, profile *model.Profile) error
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) (int64, error)
	UpdateRole(ctx context.Context, id string, fromRole string, toRole string) (int64, error)
}

type profileRepository struct {
	db *gorm.DB
}

func (r *profileRepository) WithTx(tx *gorm.DB) ProfileRepository {
	return NewProfileRepository(tx)
}

func (r *profileRepository) Create(ctx context.Context, profile *model.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) (int64, error) {
	ret := r.db.WithContext(ctx).
		Model(&model.Profile{}).
		Where("id = ?", id).
		Update(ColProfileTwoFactorEnabled, enabled)
	return ret.RowsAffected, ret.Error
}

// UpdateRole moves a profile from fromRole to toRole. Zero rows affected
// means the profile no longer holds fromRole.
func (r *profileRepository) UpdateRole(ctx context.Context, id string, fromRole string, toRole string) (int64, error) {
	ret := r.db.WithContext(ctx).
		Model(&model.Profile{}).
		Where("id = ? AND role = ?", id, fromRole).
		Update(ColProfileRole, toRole)
	return ret.RowsAffected, ret.Error
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db}
}
