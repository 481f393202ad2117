package models

import (
	"time"

	"github.com/google/uuid"
)

// Lifecycle states of a parcel booking.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusInTransit = "in_transit"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// Fund custody states. Status and escrow status only move together through
// the escrow engine; nothing else writes these columns.
const (
	EscrowAwaitingPayment = "awaiting_payment"
	EscrowHeld            = "held"
	EscrowReleased        = "released"
	EscrowRefunded        = "refunded"
)

type Parcel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	SenderID    uuid.UUID `gorm:"not null;index"`
	CarrierID   uuid.UUID `gorm:"not null;index"`
	TripID      uuid.UUID `gorm:"not null;index"`
	Title       string    `gorm:"size:255;not null"`
	Description string    `gorm:"type:text"`
	WeightKg    float64   `gorm:"type:numeric(6,2);not null"`
	TotalPrice  float64   `gorm:"type:numeric(10,2);not null"`

	Status       string `gorm:"size:20;not null;default:'pending'"`
	EscrowStatus string `gorm:"size:20;not null;default:'awaiting_payment'"`

	// SHA-256 hex of the 4-digit delivery PIN. The plaintext is returned to
	// the sender exactly once at creation and never stored.
	VerificationPin string `gorm:"size:64;not null" json:"-"`

	StripeSessionID       *string `gorm:"size:255;unique"`
	StripePaymentIntentID *string `gorm:"size:255;unique"`

	// Set when capacity was debited from the trip, cleared when credited
	// back. Guards against double reserve/release on retried transitions.
	CapacityReserved bool `gorm:"not null;default:false"`

	PaidAt   *time.Time
	PayoutAt *time.Time

	Sender  User `gorm:"foreignkey:SenderID"`
	Carrier User `gorm:"foreignkey:CarrierID"`
	Trip    Trip `gorm:"foreignkey:TripID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether no further transition is legal.
func (p *Parcel) Terminal() bool {
	return p.Status == StatusDelivered || p.Status == StatusCancelled
}
