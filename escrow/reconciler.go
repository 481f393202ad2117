package escrow

import (
	"log"

	"github.com/globalcarry/globalcarry/models"
)

// Webhook reconciliation: processor notifications arrive at least once and
// possibly out of order, so every path here re-checks local state and
// applies effects through the same conditional updates the request paths
// use. A delivery that finds its effect already applied is a quiet no-op.

// ReconcileCheckoutCompleted applies a checkout.session.completed event.
// The booking is found by the session reference, falling back to the
// parcel id carried in the session metadata for sessions the engine never
// got to store.
func (e *Engine) ReconcileCheckoutCompleted(sessionID, paymentIntentID, parcelIDHint string, amountTotal int64) error {
	parcel, err := e.findBySession(sessionID, parcelIDHint)
	if err != nil {
		if IsNotFound(err) {
			log.Printf("webhook: no parcel for checkout session %s, ignoring", sessionID)
			return nil
		}
		return err
	}

	if parcel.EscrowStatus != models.EscrowAwaitingPayment {
		// Duplicate delivery or the client confirmation won the race.
		return nil
	}

	if amountTotal == 0 {
		amountTotal = DollarsToCents(parcel.TotalPrice)
	}

	err = e.applyPaymentCaptured(parcel.ID, sessionID, paymentIntentID, amountTotal, "webhook")
	if AlreadyApplied(err) {
		return nil
	}
	return err
}

// RecordPaymentIntent stores the payment intent reference from an
// informational payment_intent.succeeded event. No state transition.
func (e *Engine) RecordPaymentIntent(parcelIDHint, paymentIntentID string) error {
	if parcelIDHint == "" || paymentIntentID == "" {
		return nil
	}
	return e.db.Model(&models.Parcel{}).
		Where("id = ? AND stripe_payment_intent_id IS NULL", parcelIDHint).
		Update("stripe_payment_intent_id", paymentIntentID).Error
}

// ReconcileChargeRefunded applies a charge.refunded event. The money
// already moved at the processor, so this path only catches local state up:
// no gateway call, capacity credited back iff this booking had debited it,
// one refund ledger row keyed by the charge id.
func (e *Engine) ReconcileChargeRefunded(paymentIntentID, chargeID string, amountRefunded int64) error {
	var parcel models.Parcel
	err := e.db.First(&parcel, "stripe_payment_intent_id = ?", paymentIntentID).Error
	if err != nil {
		if IsNotFound(err) {
			log.Printf("webhook: no parcel for refunded payment intent %s, ignoring", paymentIntentID)
			return nil
		}
		return err
	}

	if parcel.EscrowStatus == models.EscrowRefunded {
		return nil
	}

	if amountRefunded == 0 {
		amountRefunded = DollarsToCents(parcel.TotalPrice)
	}

	err = e.applyRefunded(parcel.ID, chargeID, amountRefunded, "succeeded", map[string]interface{}{
		"payment_intent_id": paymentIntentID,
		"source":            "webhook",
	})
	if AlreadyApplied(err) {
		return nil
	}
	return err
}

func (e *Engine) findBySession(sessionID, parcelIDHint string) (*models.Parcel, error) {
	var parcel models.Parcel
	err := e.db.First(&parcel, "stripe_session_id = ?", sessionID).Error
	if err == nil {
		return &parcel, nil
	}
	if !IsNotFound(err) || parcelIDHint == "" {
		return nil, err
	}
	if err := e.db.First(&parcel, "id = ?", parcelIDHint).Error; err != nil {
		return nil, err
	}
	return &parcel, nil
}
