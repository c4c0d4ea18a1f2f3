package users

import (
	"context"
	"time"

	"github.com/khanghh/konbase/model"
	"gorm.io/gorm"
)

type RecoveryKeyRepository interface {
	WithTx(tx *gorm.DB) RecoveryKeyRepository
	CreateBatch(ctx context.Context, keys []*model.RecoveryKey) error
	FindUnconsumed(ctx context.Context, userID string) ([]*model.RecoveryKey, error)
	CountUnconsumed(ctx context.Context, userID string) (int64, error)
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	MarkConsumed(ctx context.Context, userID string, keyHash string, consumedAt time.Time) (int64, error)
}

type recoveryKeyRepository struct {
	db *gorm.DB
}

func (r *recoveryKeyRepository) WithTx(tx *gorm.DB) RecoveryKeyRepository {
	return NewRecoveryKeyRepository(tx)
}

func (r *recoveryKeyRepository) CreateBatch(ctx context.Context, keys []*model.RecoveryKey) error {
	if len(keys) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(keys).Error
}

func (r *recoveryKeyRepository) FindUnconsumed(ctx context.Context, userID string) ([]*model.RecoveryKey, error) {
	var keys []*model.RecoveryKey
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND consumed = ?", userID, false).
		Order("id").
		Find(&keys).Error
	return keys, err
}

func (r *recoveryKeyRepository) CountUnconsumed(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.RecoveryKey{}).
		Where("user_id = ? AND consumed = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *recoveryKeyRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	ret := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.RecoveryKey{})
	return ret.RowsAffected, ret.Error
}

// MarkConsumed is a conditional update: of any number of concurrent callers
// for the same key, exactly one sees a row affected.
func (r *recoveryKeyRepository) MarkConsumed(ctx context.Context, userID string, keyHash string, consumedAt time.Time) (int64, error) {
	ret := r.db.WithContext(ctx).
		Model(&model.RecoveryKey{}).
		Where("user_id = ? AND key_hash = ? AND consumed = ?", userID, keyHash, false).
		Updates(map[string]interface{}{
			"consumed":    true,
			"consumed_at": consumedAt,
		})
	return ret.RowsAffected, ret.Error
}

func NewRecoveryKeyRepository(db *gorm.DB) RecoveryKeyRepository {
	return &recoveryKeyRepository{db}
}
