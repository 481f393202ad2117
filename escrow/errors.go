package escrow

import (
	"errors"
	"fmt"
)

// Validation failures. Rejected before any state change.
var (
	ErrCapacityExceeded = errors.New("requested weight exceeds the trip's available capacity")
	ErrTripInactive     = errors.New("trip is no longer active")
	ErrOwnTrip          = errors.New("cannot book a parcel on your own trip")
	ErrInvalidPin       = errors.New("incorrect delivery PIN")
)

// Precondition failures. The booking is in the wrong state for the
// requested transition; the caller should not retry blindly.
var (
	ErrPreconditionFailed   = errors.New("booking is not in a state that allows this action")
	ErrPaymentNotHeld       = errors.New("payment is not held in escrow")
	ErrAlreadyPaid          = errors.New("payment was already captured for this booking")
	ErrCannotRefundReleased = errors.New("cannot refund: payment was already released to the carrier")
	ErrNotCarrier           = errors.New("only the carrier for this booking can perform this action")
	ErrNotSender            = errors.New("only the sender for this booking can perform this action")
)

// Idempotent no-ops. The requested effect was already applied; callers
// treat these as success so processor retry loops stay quiet.
var (
	ErrAlreadyProcessed = errors.New("already processed")
	ErrAlreadyRefunded  = errors.New("already refunded")
)

// ErrSignatureInvalid means a webhook payload failed authenticity
// verification. Never retried, logged as a security event.
var ErrSignatureInvalid = errors.New("webhook signature verification failed")

// AlreadyApplied reports whether err marks an idempotent success.
func AlreadyApplied(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) || errors.Is(err, ErrAlreadyRefunded)
}

// GatewayError wraps a payment-processor failure so callers can tell an
// upstream outage apart from local validation and decide to retry.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func gatewayErr(op string, err error) error {
	return &GatewayError{Op: op, Err: err}
}
