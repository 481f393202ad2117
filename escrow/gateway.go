package escrow

// CheckoutParams describes the checkout session the gateway should open
// for a booking charge.
type CheckoutParams struct {
	ParcelID    string
	Title       string
	Description string
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CheckoutSession is the processor's view of a checkout.
type CheckoutSession struct {
	ID              string
	URL             string
	PaymentIntentID string
	PaymentStatus   string
	AmountTotal     int64
}

// Refund is the processor's acknowledgement of a refund call.
type Refund struct {
	ID     string
	Status string
}

// Gateway is the narrow surface of the payment processor the engine needs.
// It issues checkout sessions and refunds; it never mutates booking state.
type Gateway interface {
	CreateCheckoutSession(params CheckoutParams) (*CheckoutSession, error)
	RetrieveCheckoutSession(sessionID string) (*CheckoutSession, error)
	CreateRefund(paymentIntentID, reason string, metadata map[string]string) (*Refund, error)
}

// SessionPaid is the processor's payment_status value for a captured
// checkout.
const SessionPaid = "paid"
