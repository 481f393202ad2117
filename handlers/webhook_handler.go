package handlers

import (
	"log"
	"time"

	config "github.com/globalcarry/globalcarry/configs"
	"github.com/globalcarry/globalcarry/database"
	"github.com/globalcarry/globalcarry/models"
	"github.com/globalcarry/globalcarry/payments"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HandleStripeWebhook consumes asynchronous processor notifications.
// Deliveries are at-least-once and may arrive out of order; the engine's
// reconciliation paths are idempotent, so the only job here is to verify
// authenticity, dispatch by event type, and always return 200 for events
// we understand or deliberately ignore. Anything non-2xx makes the
// processor retry, so local best-effort side effects must never fail the
// response.
func HandleStripeWebhook(c *fiber.Ctx) error {
	body := c.Body()
	signature := c.Get("Stripe-Signature")
	secret := config.Config("STRIPE_WEBHOOK_SECRET")

	if err := payments.VerifySignature(body, signature, secret, time.Now()); err != nil {
		log.Printf("⚠️ SECURITY: webhook signature verification failed from %s: %v", c.IP(), err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid signature"})
	}

	event, err := payments.ParseEvent(body)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse webhook payload"})
	}

	switch event.Type {
	case payments.EventCheckoutCompleted:
		session := event.Session
		err = Engine.ReconcileCheckoutCompleted(session.ID, session.PaymentIntent, session.Metadata["parcel_id"], session.AmountTotal)
		if err == nil {
			go notifyWebhookEvent(session.Metadata["parcel_id"], "payment_confirmed")
		}

	case payments.EventIntentSucceeded:
		// Informational only: remember the intent reference if the
		// checkout confirmation has not stored it yet.
		err = Engine.RecordPaymentIntent(event.Intent.Metadata["parcel_id"], event.Intent.ID)

	case payments.EventChargeRefunded:
		charge := event.Charge
		err = Engine.ReconcileChargeRefunded(charge.PaymentIntent, charge.ID, charge.AmountRefunded)
		if err == nil {
			go notifyWebhookRefund(charge.PaymentIntent)
		}

	default:
		log.Printf("Unhandled webhook event type: %s", event.Type)
		return c.JSON(fiber.Map{"received": true})
	}

	if err != nil {
		log.Printf("🔥 CRITICAL: webhook %s (%s) failed: %v", event.ID, event.Type, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Webhook handler failed"})
	}

	return c.JSON(fiber.Map{"received": true})
}

func notifyWebhookEvent(parcelIDHint, event string) {
	id, err := uuid.Parse(parcelIDHint)
	if err != nil {
		return
	}
	notifyParcelEvent(id, event)
}

func notifyWebhookRefund(paymentIntentID string) {
	var parcel models.Parcel
	if err := database.DB.First(&parcel, "stripe_payment_intent_id = ?", paymentIntentID).Error; err != nil {
		return
	}
	notifyParcelEvent(parcel.ID, "refunded")
}
