package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	KycStatusNone     = "none"
	KycStatusPending  = "pending"
	KycStatusVerified = "verified"
	KycStatusRejected = "rejected"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	FullName  string    `gorm:"size:255;not null"`
	Email     string    `gorm:"size:255;not null;unique"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      string    `gorm:"size:20;not null;default:'user'"`
	Phone     *string   `gorm:"size:30"`
	KycStatus string    `gorm:"size:20;not null;default:'none'"`
	IsActive  bool      `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Verified reports whether the user passed identity review. Only the
// resulting flag is surfaced; document handling lives outside this service.
func (u *User) Verified() bool {
	return u.KycStatus == KycStatusVerified
}
