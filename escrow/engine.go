package escrow

import (
	"errors"
	"fmt"
	"time"

	config "github.com/globalcarry/globalcarry/configs"
	"github.com/globalcarry/globalcarry/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Engine owns every transition of a parcel's (status, escrow_status) pair.
// Each transition is a single conditional update against the store: only
// the first caller to observe the precondition applies the side effects,
// everyone else sees the post-state and gets an idempotent result. Money
// movements additionally land in the append-only ledger inside the same
// database transaction, so a failed ledger write rolls the transition back.
type Engine struct {
	db       *gorm.DB
	gateway  Gateway
	platform config.Platform
}

func NewEngine(db *gorm.DB, gateway Gateway, platform config.Platform) *Engine {
	return &Engine{db: db, gateway: gateway, platform: platform}
}

// Initiator identifies who asked for a booking mutation.
type Initiator struct {
	UserID uuid.UUID
	Admin  bool
	System bool
}

// Booking carries the result of a booking creation. Pin is the plaintext
// delivery PIN, available here exactly once; only its hash is stored.
type Booking struct {
	Parcel *models.Parcel
	Pin    string
}

func (e *Engine) loadParcel(parcelID uuid.UUID) (*models.Parcel, error) {
	var parcel models.Parcel
	if err := e.db.First(&parcel, "id = ?", parcelID).Error; err != nil {
		return nil, err
	}
	return &parcel, nil
}

// CreateBooking validates the request against the trip, prices the parcel
// and persists it in (pending, awaiting_payment). No capacity is debited
// here; the trip's allowance is committed only when the carrier accepts.
func (e *Engine) CreateBooking(senderID, tripID uuid.UUID, weightKg float64, title, description string) (*Booking, error) {
	var trip models.Trip
	if err := e.db.First(&trip, "id = ?", tripID).Error; err != nil {
		return nil, err
	}
	if !trip.IsActive {
		return nil, ErrTripInactive
	}
	if trip.CarrierID == senderID {
		return nil, ErrOwnTrip
	}
	if weightKg <= 0 || weightKg > trip.AvailableWeightKg {
		return nil, ErrCapacityExceeded
	}

	pin, err := GeneratePin()
	if err != nil {
		return nil, err
	}

	parcel := models.Parcel{
		ID:              uuid.New(),
		SenderID:        senderID,
		CarrierID:       trip.CarrierID,
		TripID:          trip.ID,
		Title:           title,
		Description:     description,
		WeightKg:        weightKg,
		TotalPrice:      weightKg * trip.PricePerKg,
		Status:          models.StatusPending,
		EscrowStatus:    models.EscrowAwaitingPayment,
		VerificationPin: HashPin(pin),
	}
	if err := e.db.Create(&parcel).Error; err != nil {
		return nil, err
	}

	return &Booking{Parcel: &parcel, Pin: pin}, nil
}

// BeginPayment opens a checkout session for a booking that has not been
// paid yet and stores the session reference. Returns the redirect URL the
// sender completes payment at.
func (e *Engine) BeginPayment(parcelID, callerID uuid.UUID) (string, error) {
	parcel, err := e.loadParcel(parcelID)
	if err != nil {
		return "", err
	}
	if parcel.SenderID != callerID {
		return "", ErrNotSender
	}
	if parcel.EscrowStatus == models.EscrowHeld || parcel.EscrowStatus == models.EscrowReleased {
		return "", ErrAlreadyPaid
	}
	if parcel.Status != models.StatusPending || parcel.EscrowStatus != models.EscrowAwaitingPayment {
		return "", ErrPreconditionFailed
	}

	session, err := e.gateway.CreateCheckoutSession(CheckoutParams{
		ParcelID:    parcel.ID.String(),
		Title:       parcel.Title,
		Description: fmt.Sprintf("%.2f kg parcel delivery", parcel.WeightKg),
		AmountCents: DollarsToCents(parcel.TotalPrice),
		Currency:    e.platform.Currency,
		SuccessURL:  e.platform.CheckoutSuccessURL,
		CancelURL:   e.platform.CheckoutCancelURL,
		Metadata: map[string]string{
			"parcel_id":  parcel.ID.String(),
			"carrier_id": parcel.CarrierID.String(),
			"sender_id":  parcel.SenderID.String(),
		},
	})
	if err != nil {
		return "", gatewayErr("checkout", err)
	}

	if err := e.db.Model(parcel).Update("stripe_session_id", session.ID).Error; err != nil {
		// The session exists upstream but we cannot tie it to the booking;
		// the compensating delete keeps the sender from paying into a
		// session no booking references.
		e.db.Delete(&models.Parcel{}, "id = ? AND escrow_status = ?", parcel.ID, models.EscrowAwaitingPayment)
		return "", err
	}

	return session.URL, nil
}

// ConfirmPayment verifies the stored checkout session with the processor
// and moves the booking to (pending, held). Idempotent: a booking whose
// funds are already held (or beyond) reports ErrAlreadyProcessed, which
// callers treat as success.
func (e *Engine) ConfirmPayment(parcelID, callerID uuid.UUID) error {
	parcel, err := e.loadParcel(parcelID)
	if err != nil {
		return err
	}
	if parcel.SenderID != callerID && parcel.CarrierID != callerID {
		return ErrNotSender
	}
	if parcel.EscrowStatus == models.EscrowHeld || parcel.EscrowStatus == models.EscrowReleased {
		return ErrAlreadyProcessed
	}
	if parcel.StripeSessionID == nil {
		return ErrPreconditionFailed
	}

	session, err := e.gateway.RetrieveCheckoutSession(*parcel.StripeSessionID)
	if err != nil {
		return gatewayErr("session retrieve", err)
	}
	if session.PaymentStatus != SessionPaid {
		return ErrPreconditionFailed
	}

	amount := session.AmountTotal
	if amount == 0 {
		amount = DollarsToCents(parcel.TotalPrice)
	}

	return e.applyPaymentCaptured(parcel.ID, *parcel.StripeSessionID, session.PaymentIntentID, amount, "confirm_payment")
}

// applyPaymentCaptured performs the awaiting_payment -> held transition and
// writes the charge ledger row, both in one database transaction. Shared by
// the client confirmation path and the webhook reconciler.
func (e *Engine) applyPaymentCaptured(parcelID uuid.UUID, sessionID, paymentIntentID string, amountCents int64, source string) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Parcel{}).
			Where("id = ? AND status = ? AND escrow_status = ?", parcelID, models.StatusPending, models.EscrowAwaitingPayment).
			Updates(map[string]interface{}{
				"escrow_status":            models.EscrowHeld,
				"stripe_payment_intent_id": paymentIntentID,
				"paid_at":                  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}

		return recordTransaction(tx, parcelID, models.TxnTypeCharge, paymentIntentID, amountCents, "succeeded", map[string]interface{}{
			"session_id": sessionID,
			"source":     source,
		})
	})
}

// Accept commits the carrier to the booking and reserves trip capacity.
// Valid only from (pending, held).
func (e *Engine) Accept(parcelID, callerID uuid.UUID) error {
	parcel, err := e.loadParcel(parcelID)
	if err != nil {
		return err
	}
	if parcel.CarrierID != callerID {
		return ErrNotCarrier
	}
	if parcel.EscrowStatus != models.EscrowHeld {
		return ErrPaymentNotHeld
	}
	if parcel.Status != models.StatusPending {
		return ErrPreconditionFailed
	}

	return e.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Parcel{}).
			Where("id = ? AND status = ? AND escrow_status = ? AND capacity_reserved = ?",
				parcelID, models.StatusPending, models.EscrowHeld, false).
			Updates(map[string]interface{}{
				"status":            models.StatusAccepted,
				"capacity_reserved": true,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}
		return reserveCapacity(tx, parcel.TripID, parcel.WeightKg)
	})
}

// Reject declines a pending booking. A held escrow is refunded at the
// processor first; a booking that was never charged just cancels.
func (e *Engine) Reject(parcelID, callerID uuid.UUID) error {
	parcel, err := e.loadParcel(parcelID)
	if err != nil {
		return err
	}
	if parcel.CarrierID != callerID {
		return ErrNotCarrier
	}
	if parcel.Status != models.StatusPending {
		return ErrPreconditionFailed
	}

	switch parcel.EscrowStatus {
	case models.EscrowHeld:
		return e.refundHeld(parcel, "carrier_rejected", callerID.String())
	case models.EscrowAwaitingPayment:
		res := e.db.Model(&models.Parcel{}).
			Where("id = ? AND status = ? AND escrow_status = ?", parcelID, models.StatusPending, models.EscrowAwaitingPayment).
			Updates(map[string]interface{}{
				"status":        models.StatusCancelled,
				"escrow_status": models.EscrowRefunded,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}
		return nil
	default:
		return ErrPreconditionFailed
	}
}

// MarkInTransit records that the carrier picked the parcel up.
func (e *Engine) MarkInTransit(parcelID, callerID uuid.UUID) error {
	parcel, err := e.loadParcel(parcelID)
	if err != nil {
		return err
	}
	if parcel.CarrierID != callerID {
		return ErrNotCarrier
	}

	res := e.db.Model(&models.Parcel{}).
		Where("id = ? AND status = ? AND escrow_status = ?", parcelID, models.StatusAccepted, models.EscrowHeld).
		Update("status", models.StatusInTransit)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if parcel.Status == models.StatusInTransit {
			return ErrAlreadyProcessed
		}
		return ErrPreconditionFailed
	}
	return nil
}

// ConfirmDelivery checks the sender's PIN and, on match, releases escrow to
// the carrier: (in_transit, held) -> (delivered, released) plus one payout
// ledger row. The payout reference is derived from the parcel id, so a
// retried confirmation can never write a second row.
func (e *Engine) ConfirmDelivery(parcelID, callerID uuid.UUID, pin string) (Settlement, error) {
	var settlement Settlement

	parcel, err := e.loadParcel(parcelID)
	if err != nil {
		return settlement, err
	}
	if parcel.CarrierID != callerID {
		return settlement, ErrNotCarrier
	}
	if parcel.Status == models.StatusDelivered && parcel.EscrowStatus == models.EscrowReleased {
		return settlement, ErrAlreadyProcessed
	}
	if parcel.Status != models.StatusInTransit || parcel.EscrowStatus != models.EscrowHeld {
		return settlement, ErrPreconditionFailed
	}
	if !VerifyPin(pin, parcel.VerificationPin) {
		return settlement, ErrInvalidPin
	}

	settlement = Settle(DollarsToCents(parcel.TotalPrice), e.platform.FeePercent)

	err = e.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Parcel{}).
			Where("id = ? AND status = ? AND escrow_status = ?", parcelID, models.StatusInTransit, models.EscrowHeld).
			Updates(map[string]interface{}{
				"status":        models.StatusDelivered,
				"escrow_status": models.EscrowReleased,
				"payout_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}

		return recordTransaction(tx, parcelID, models.TxnTypePayout, "payout_"+parcelID.String(), settlement.CarrierPayoutCents, "pending", map[string]interface{}{
			"carrier_id":         parcel.CarrierID.String(),
			"platform_fee_cents": settlement.PlatformFeeCents,
			"total_cents":        settlement.TotalCents,
		})
	})

	return settlement, err
}

// Refund returns held funds to the sender and cancels the booking. Callable
// by an admin at any non-terminal point, by the sender before the carrier
// accepted, and by the system's accept-timeout sweep. Already-refunded
// bookings report ErrAlreadyRefunded, which callers treat as success.
func (e *Engine) Refund(parcelID uuid.UUID, by Initiator, reason string) error {
	parcel, err := e.loadParcel(parcelID)
	if err != nil {
		return err
	}

	if !by.Admin && !by.System {
		if parcel.SenderID != by.UserID {
			return ErrNotSender
		}
		if parcel.Status != models.StatusPending {
			return ErrPreconditionFailed
		}
	}

	switch parcel.EscrowStatus {
	case models.EscrowRefunded:
		return ErrAlreadyRefunded
	case models.EscrowReleased:
		return ErrCannotRefundReleased
	case models.EscrowAwaitingPayment:
		if parcel.Terminal() {
			return ErrPreconditionFailed
		}
		res := e.db.Model(&models.Parcel{}).
			Where("id = ? AND escrow_status = ? AND status NOT IN ?", parcelID, models.EscrowAwaitingPayment,
				[]string{models.StatusDelivered, models.StatusCancelled}).
			Updates(map[string]interface{}{
				"status":        models.StatusCancelled,
				"escrow_status": models.EscrowRefunded,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyRefunded
		}
		return nil
	default:
		if reason == "" {
			reason = "requested_by_customer"
		}
		return e.refundHeld(parcel, reason, refundInitiatorLabel(by))
	}
}

func refundInitiatorLabel(by Initiator) string {
	switch {
	case by.System:
		return "system"
	case by.Admin:
		return "admin:" + by.UserID.String()
	default:
		return "sender:" + by.UserID.String()
	}
}

// refundHeld calls the processor, then reconciles local state. The refund
// already happened upstream once CreateRefund returns, so every local step
// after that must succeed or surface an error for reconciliation.
func (e *Engine) refundHeld(parcel *models.Parcel, reason, initiator string) error {
	if parcel.StripePaymentIntentID == nil {
		return ErrPreconditionFailed
	}

	refund, err := e.gateway.CreateRefund(*parcel.StripePaymentIntentID, reason, map[string]string{
		"parcel_id":   parcel.ID.String(),
		"refunded_by": initiator,
	})
	if err != nil {
		return gatewayErr("refund", err)
	}

	return e.applyRefunded(parcel.ID, refund.ID, DollarsToCents(parcel.TotalPrice), refund.Status, map[string]interface{}{
		"payment_intent_id": *parcel.StripePaymentIntentID,
		"refunded_by":       initiator,
		"reason":            reason,
	})
}

// applyRefunded performs the local half of a refund: transition to
// (cancelled, refunded), credit capacity back if this booking had debited
// it, and append the refund ledger row. Used both after a gateway refund
// call and when reconciling a charge.refunded webhook, where the money
// already moved and only local state needs to catch up.
func (e *Engine) applyRefunded(parcelID uuid.UUID, stripeRef string, amountCents int64, status string, metadata map[string]interface{}) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Parcel{}).
			Where("id = ? AND escrow_status = ?", parcelID, models.EscrowHeld).
			Updates(map[string]interface{}{
				"status":        models.StatusCancelled,
				"escrow_status": models.EscrowRefunded,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyRefunded
		}

		var parcel models.Parcel
		if err := tx.First(&parcel, "id = ?", parcelID).Error; err != nil {
			return err
		}
		released, err := clearReserved(tx, parcelID)
		if err != nil {
			return err
		}
		if released {
			if err := releaseCapacity(tx, parcel.TripID, parcel.WeightKg); err != nil {
				return err
			}
		}

		if status == "" {
			status = "succeeded"
		}
		return recordTransaction(tx, parcelID, models.TxnTypeRefund, stripeRef, amountCents, status, metadata)
	})
}

// ExpireStaleBookings refunds paid bookings the carrier never acted on
// within the accept window. Every parcel goes through the same idempotent
// Refund path, so overlapping sweeps are harmless.
func (e *Engine) ExpireStaleBookings(cutoff time.Time) ([]uuid.UUID, error) {
	var stale []models.Parcel
	err := e.db.
		Where("status = ? AND escrow_status = ? AND paid_at < ?", models.StatusPending, models.EscrowHeld, cutoff).
		Find(&stale).Error
	if err != nil {
		return nil, err
	}

	var refunded []uuid.UUID
	for i := range stale {
		err := e.Refund(stale[i].ID, Initiator{System: true}, "accept_timeout")
		if err != nil && !AlreadyApplied(err) {
			return refunded, fmt.Errorf("expire booking %s: %w", stale[i].ID, err)
		}
		if err == nil {
			refunded = append(refunded, stale[i].ID)
		}
	}
	return refunded, nil
}

// SettleParcel computes the fee split for a parcel's price using the
// engine's injected fee rate.
func (e *Engine) SettleParcel(p *models.Parcel) Settlement {
	return Settle(DollarsToCents(p.TotalPrice), e.platform.FeePercent)
}

// IsNotFound reports whether err is the store's missing-row error, so
// handlers can map it to a 404 without importing gorm.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
