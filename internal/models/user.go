package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserStatus is the moderation state of an account.
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusApproved UserStatus = "approved"
	UserStatusRejected UserStatus = "rejected"
)

// Text returns s as a nullable column value; the empty string is NULL.
func Text(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Valid reports whether s is one of the known statuses.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusPending, UserStatusApproved, UserStatusRejected:
		return true
	}
	return false
}

// User represents a customer account of the catalog.
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Email        string     `json:"email" gorm:"uniqueIndex;type:varchar(255);not null" validate:"required,email"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255);not null"` // never serialized
	Name         *string    `json:"name" gorm:"type:varchar(255)" validate:"omitempty,max=255"`
	Company      *string    `json:"company" gorm:"type:varchar(255)" validate:"omitempty,max=255"`
	Address      *string    `json:"address" gorm:"type:text"`
	Phone        *string    `json:"phone" gorm:"type:varchar(50)" validate:"omitempty,max=50"`
	Status       UserStatus `json:"status" gorm:"type:varchar(20);not null;default:pending;check:chk_users_status,status IN ('pending','approved','rejected')" validate:"omitempty,oneof=pending approved rejected"`
	IsAdmin      bool       `json:"is_admin" gorm:"not null;default:false"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// BeforeCreate assigns a UUID when the caller did not provide one.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// OwnerID is the user the row belongs to, i.e. the user itself.
func (u *User) OwnerID() string { return u.ID }

func (u *User) SetOwnerID(id string) { u.ID = id }
