package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile is the identity platform's user profile. Only Role and
// TwoFactorEnabled are written by this service.
type Profile struct {
	ID               string `gorm:"primaryKey;size:36"`
	Email            string `gorm:"size:256;index"`
	Role             string `gorm:"size:32;not null;default:member"`
	TwoFactorEnabled bool   `gorm:"not null;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
