package escrow

import "math"

// Settlement is the split of a captured charge between the platform and the
// carrier. Amounts are minor currency units.
type Settlement struct {
	TotalCents         int64
	PlatformFeeCents   int64
	CarrierPayoutCents int64
}

// Settle computes the platform fee and carrier payout for a total amount.
// Pure arithmetic, no I/O; feePercent comes from platform config.
func Settle(totalCents int64, feePercent float64) Settlement {
	fee := int64(math.Round(float64(totalCents) * feePercent / 100))
	return Settlement{
		TotalCents:         totalCents,
		PlatformFeeCents:   fee,
		CarrierPayoutCents: totalCents - fee,
	}
}

// DollarsToCents converts a stored decimal price to minor units.
func DollarsToCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}
