package audit

import (
	"context"

	"github.com/khanghh/konbase/model"
	"gorm.io/gorm"
)

// AuditLogRepository only appends and reads; audit rows are never changed.
type AuditLogRepository interface {
	WithTx(tx *gorm.DB) AuditLogRepository
	Create(ctx context.Context, entry *model.AuditLog) error
	FindByUserID(ctx context.Context, userID string) ([]*model.AuditLog, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

func (r *auditLogRepository) WithTx(tx *gorm.DB) AuditLogRepository {
	return NewAuditLogRepository(tx)
}

func (r *auditLogRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditLogRepository) FindByUserID(ctx context.Context, userID string) ([]*model.AuditLog, error) {
	var entries []*model.AuditLog
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at, id").Find(&entries).Error
	return entries, err
}

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db}
}
