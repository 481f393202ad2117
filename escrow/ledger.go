package escrow

import (
	"encoding/json"

	"github.com/globalcarry/globalcarry/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// recordTransaction appends one ledger row for a real money movement.
// Insertion is a no-op when a row with the same provider reference already
// exists; that uniqueness is the last line of defense against two callers
// that each believe they won the state transition.
func recordTransaction(tx *gorm.DB, parcelID uuid.UUID, txnType, stripeID string, amountCents int64, status string, metadata map[string]interface{}) error {
	meta := ""
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		meta = string(raw)
	}

	txn := models.PaymentTransaction{
		ID:          uuid.New(),
		ParcelID:    parcelID,
		Type:        txnType,
		StripeID:    stripeID,
		AmountCents: amountCents,
		Status:      status,
		Metadata:    meta,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_id"}},
		DoNothing: true,
	}).Create(&txn).Error
}
