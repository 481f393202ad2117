package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TxnTypeCharge = "charge"
	TxnTypeRefund = "refund"
	TxnTypePayout = "payout"
)

// PaymentTransaction is one row in the append-only ledger of real money
// movements. Rows are created once and never updated or deleted; the unique
// StripeID is the idempotency key that keeps duplicate deliveries of the
// same processor event from producing a second row.
type PaymentTransaction struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	ParcelID    uuid.UUID `gorm:"not null;index"`
	Type        string    `gorm:"size:10;not null"`
	StripeID    string    `gorm:"size:255;not null;unique"`
	AmountCents int64     `gorm:"not null"`
	Status      string    `gorm:"size:20;not null"`
	Metadata    string    `gorm:"type:text"`

	Parcel Parcel `gorm:"foreignkey:ParcelID"`

	CreatedAt time.Time
}
