package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VerificationCode is one code sent to an email address. It is linked to a
// user by email only; there is no foreign key.
type VerificationCode struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Email     string    `json:"email" gorm:"type:varchar(255);not null;index" validate:"required,email"`
	Code      string    `json:"code" gorm:"type:varchar(16);not null" validate:"required,max=16"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null" validate:"required"`
	Used      bool      `json:"used" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
}

func (VerificationCode) TableName() string { return "verification_codes" }

func (v *VerificationCode) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}

// Expired reports whether the code is past its expiry at now.
func (v *VerificationCode) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
