package payments

import "encoding/json"

// Known webhook event types. Anything else is acknowledged and ignored so
// the processor does not retry deliveries we will never act on.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventIntentSucceeded   = "payment_intent.succeeded"
	EventChargeRefunded    = "charge.refunded"
)

// Event is the decoded webhook envelope. Exactly one of Session, Intent or
// Charge is populated, matching Type; unknown types leave all three nil.
type Event struct {
	ID      string
	Type    string
	Session *SessionObject
	Intent  *IntentObject
	Charge  *ChargeObject
}

type SessionObject struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
}

type IntentObject struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

type ChargeObject struct {
	ID             string            `json:"id"`
	PaymentIntent  string            `json:"payment_intent"`
	AmountRefunded int64             `json:"amount_refunded"`
	Metadata       map[string]string `json:"metadata"`
}

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a verified webhook payload into an Event.
func ParseEvent(payload []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}

	ev := &Event{ID: env.ID, Type: env.Type}
	switch env.Type {
	case EventCheckoutCompleted:
		var session SessionObject
		if err := json.Unmarshal(env.Data.Object, &session); err != nil {
			return nil, err
		}
		ev.Session = &session
	case EventIntentSucceeded:
		var intent IntentObject
		if err := json.Unmarshal(env.Data.Object, &intent); err != nil {
			return nil, err
		}
		ev.Intent = &intent
	case EventChargeRefunded:
		var charge ChargeObject
		if err := json.Unmarshal(env.Data.Object, &charge); err != nil {
			return nil, err
		}
		ev.Charge = &charge
	}
	return ev, nil
}
