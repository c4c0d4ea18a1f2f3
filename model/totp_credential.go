package model

import "time"

// TOTPCredential holds the sealed TOTP secret of a user. A user has at most
// one credential; it exists exactly when Profile.TwoFactorEnabled is true.
type TOTPCredential struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex"`
	Secret    string    `gorm:"size:256;not null"` // XChaCha20-Poly1305 sealed, base64
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time
}

func (TOTPCredential) TableName() string {
	return "totp_credential"
}
