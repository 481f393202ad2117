package escrow

import (
	"github.com/globalcarry/globalcarry/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Capacity adjustments run as atomic arithmetic at the store, never as a
// read-then-write, so two bookings accepted against the same trip cannot
// both apply a delta computed from a stale row. Each booking debits at most
// once and credits at most once; the guard is the CapacityReserved flag on
// the parcel, flipped with a conditional update before touching the trip.

// reserveCapacity debits weight from the trip's available allowance,
// floored at zero.
func reserveCapacity(tx *gorm.DB, tripID uuid.UUID, weight float64) error {
	res := tx.Model(&models.Trip{}).
		Where("id = ? AND available_weight_kg >= ?", tripID, weight).
		Update("available_weight_kg", gorm.Expr("available_weight_kg - ?", weight))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Less than the requested weight left; clamp to the floor.
		return tx.Model(&models.Trip{}).
			Where("id = ? AND available_weight_kg < ?", tripID, weight).
			Update("available_weight_kg", 0).Error
	}
	return nil
}

// releaseCapacity credits weight back, capped at the trip's total.
func releaseCapacity(tx *gorm.DB, tripID uuid.UUID, weight float64) error {
	res := tx.Model(&models.Trip{}).
		Where("id = ? AND available_weight_kg + ? <= total_weight_kg", tripID, weight).
		Update("available_weight_kg", gorm.Expr("available_weight_kg + ?", weight))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tx.Model(&models.Trip{}).
			Where("id = ? AND available_weight_kg + ? > total_weight_kg", tripID, weight).
			Update("available_weight_kg", gorm.Expr("total_weight_kg")).Error
	}
	return nil
}

// markReserved flips the per-booking debit flag. Returns false when the
// flag was already set, meaning capacity for this booking is spoken for.
func markReserved(tx *gorm.DB, parcelID uuid.UUID) (bool, error) {
	res := tx.Model(&models.Parcel{}).
		Where("id = ? AND capacity_reserved = ?", parcelID, false).
		Update("capacity_reserved", true)
	return res.RowsAffected == 1, res.Error
}

// clearReserved flips the flag back. Returns false when nothing was
// reserved, so repeated refund attempts cannot credit the trip twice.
func clearReserved(tx *gorm.DB, parcelID uuid.UUID) (bool, error) {
	res := tx.Model(&models.Parcel{}).
		Where("id = ? AND capacity_reserved = ?", parcelID, true).
		Update("capacity_reserved", false)
	return res.RowsAffected == 1, res.Error
}
