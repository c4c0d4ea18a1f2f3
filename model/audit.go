package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog is append-only: rows are inserted and never updated or deleted.
type AuditLog struct {
	ID        int64             `gorm:"primaryKey;autoIncrement:false"`
	UserID    string            `gorm:"size:36;not null;index"`
	Action    string            `gorm:"size:64;not null;index"` // setup_2fa, disable_2fa, ...
	Entity    string            `gorm:"size:64;not null"`       // table the change applies to
	EntityID  string            `gorm:"size:64;not null"`
	Changes   datatypes.JSONMap `gorm:"type:json"`
	CreatedAt time.Time         `gorm:"autoCreateTime"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == 0 {
		a.ID = GenerateID()
	}
	return nil
}
