package model

import "time"

type RecoveryKey struct {
	ID         uint       `gorm:"primaryKey;autoIncrement"`
	UserID     string     `gorm:"size:36;not null;index"`
	KeyHash    string     `gorm:"size:128;not null"` // bcrypt hash of the normalized key
	Consumed   bool       `gorm:"not null;default:false"`
	ConsumedAt *time.Time
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (RecoveryKey) TableName() string {
	return "recovery_key"
}
