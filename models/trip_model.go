package models

import (
	"time"

	"github.com/google/uuid"
)

type Trip struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key"`
	CarrierID         uuid.UUID `gorm:"not null;index"`
	Origin            string    `gorm:"size:255;not null"`
	Destination       string    `gorm:"size:255;not null"`
	TravelDate        time.Time `gorm:"not null"`
	TotalWeightKg     float64   `gorm:"type:numeric(6,2);not null"`
	AvailableWeightKg float64   `gorm:"type:numeric(6,2);not null"`
	PricePerKg        float64   `gorm:"type:numeric(10,2);not null"`
	IsActive          bool      `gorm:"not null;default:true"`

	Carrier User `gorm:"foreignkey:CarrierID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
