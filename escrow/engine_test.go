package escrow

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	config "github.com/globalcarry/globalcarry/configs"
	"github.com/globalcarry/globalcarry/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeGateway stands in for the payment processor. It counts calls so
// tests can assert which paths talk to the gateway and which must not.
type fakeGateway struct {
	checkoutCalls int
	retrieveCalls int
	refundCalls   int
	paymentStatus string
	refundErr     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{paymentStatus: SessionPaid}
}

func (g *fakeGateway) CreateCheckoutSession(params CheckoutParams) (*CheckoutSession, error) {
	g.checkoutCalls++
	id := fmt.Sprintf("cs_test_%d", g.checkoutCalls)
	return &CheckoutSession{
		ID:            id,
		URL:           "https://checkout.stripe.example/" + id,
		PaymentStatus: "unpaid",
		AmountTotal:   params.AmountCents,
	}, nil
}

func (g *fakeGateway) RetrieveCheckoutSession(sessionID string) (*CheckoutSession, error) {
	g.retrieveCalls++
	return &CheckoutSession{
		ID:              sessionID,
		PaymentIntentID: "pi_" + sessionID,
		PaymentStatus:   g.paymentStatus,
	}, nil
}

func (g *fakeGateway) CreateRefund(paymentIntentID, reason string, metadata map[string]string) (*Refund, error) {
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refundCalls++
	return &Refund{ID: fmt.Sprintf("re_test_%d", g.refundCalls), Status: "succeeded"}, nil
}

func testPlatform() config.Platform {
	return config.Platform{
		FeePercent:         10,
		Currency:           "usd",
		AcceptTimeoutHours: 72,
		CheckoutSuccessURL: "https://app.example/bookings/success",
		CheckoutCancelURL:  "https://app.example/bookings/cancel",
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeGateway, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	err = db.AutoMigrate(&models.User{}, &models.Trip{}, &models.Parcel{}, &models.PaymentTransaction{})
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	gateway := newFakeGateway()
	return NewEngine(db, gateway, testPlatform()), gateway, db
}

func seedTrip(t *testing.T, db *gorm.DB, totalWeight, pricePerKg float64) (sender, carrier models.User, trip models.Trip) {
	t.Helper()

	sender = models.User{FullName: "Sana Sender", Email: uuid.NewString() + "@example.com", Password: "x", Role: "user"}
	carrier = models.User{FullName: "Carl Carrier", Email: uuid.NewString() + "@example.com", Password: "x", Role: "user"}
	if err := db.Create(&sender).Error; err != nil {
		t.Fatalf("seed sender: %v", err)
	}
	if err := db.Create(&carrier).Error; err != nil {
		t.Fatalf("seed carrier: %v", err)
	}

	trip = models.Trip{
		CarrierID:         carrier.ID,
		Origin:            "Dubai",
		Destination:       "Nairobi",
		TravelDate:        time.Now().Add(7 * 24 * time.Hour),
		TotalWeightKg:     totalWeight,
		AvailableWeightKg: totalWeight,
		PricePerKg:        pricePerKg,
		IsActive:          true,
	}
	if err := db.Create(&trip).Error; err != nil {
		t.Fatalf("seed trip: %v", err)
	}
	return sender, carrier, trip
}

func reloadParcel(t *testing.T, db *gorm.DB, id uuid.UUID) models.Parcel {
	t.Helper()
	var p models.Parcel
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("reload parcel: %v", err)
	}
	return p
}

func reloadTrip(t *testing.T, db *gorm.DB, id uuid.UUID) models.Trip {
	t.Helper()
	var trip models.Trip
	if err := db.First(&trip, "id = ?", id).Error; err != nil {
		t.Fatalf("reload trip: %v", err)
	}
	return trip
}

func countTxns(t *testing.T, db *gorm.DB, parcelID uuid.UUID, txnType string) int64 {
	t.Helper()
	var n int64
	err := db.Model(&models.PaymentTransaction{}).
		Where("parcel_id = ? AND type = ?", parcelID, txnType).
		Count(&n).Error
	if err != nil {
		t.Fatalf("count %s transactions: %v", txnType, err)
	}
	return n
}

// payBooking walks a fresh booking through checkout and confirmation.
func payBooking(t *testing.T, e *Engine, sender uuid.UUID, parcelID uuid.UUID) {
	t.Helper()
	if _, err := e.BeginPayment(parcelID, sender); err != nil {
		t.Fatalf("BeginPayment: %v", err)
	}
	if err := e.ConfirmPayment(parcelID, sender); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
}

func TestBookingLifecycle(t *testing.T) {
	e, gw, db := newTestEngine(t)
	sender, carrier, trip := seedTrip(t, db, 10, 5)

	booking, err := e.CreateBooking(sender.ID, trip.ID, 4, "Camera lens", "Handle with care")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if booking.Parcel.TotalPrice != 20 {
		t.Errorf("total price: got %v, want 20", booking.Parcel.TotalPrice)
	}
	if len(booking.Pin) != 4 {
		t.Errorf("pin %q is not 4 digits", booking.Pin)
	}
	if booking.Parcel.VerificationPin != HashPin(booking.Pin) {
		t.Error("stored PIN hash does not match the returned plaintext")
	}
	if booking.Parcel.Status != models.StatusPending || booking.Parcel.EscrowStatus != models.EscrowAwaitingPayment {
		t.Fatalf("new booking state: got (%s, %s)", booking.Parcel.Status, booking.Parcel.EscrowStatus)
	}

	parcelID := booking.Parcel.ID

	url, err := e.BeginPayment(parcelID, sender.ID)
	if err != nil {
		t.Fatalf("BeginPayment: %v", err)
	}
	if url == "" {
		t.Error("BeginPayment returned empty redirect URL")
	}
	if gw.checkoutCalls != 1 {
		t.Errorf("checkout calls: got %d, want 1", gw.checkoutCalls)
	}

	if err := e.ConfirmPayment(parcelID, sender.ID); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	p := reloadParcel(t, db, parcelID)
	if p.Status != models.StatusPending || p.EscrowStatus != models.EscrowHeld {
		t.Fatalf("after payment: got (%s, %s), want (pending, held)", p.Status, p.EscrowStatus)
	}
	if p.PaidAt == nil {
		t.Error("paid_at not stamped")
	}
	if n := countTxns(t, db, parcelID, models.TxnTypeCharge); n != 1 {
		t.Fatalf("charge ledger rows: got %d, want 1", n)
	}

	if err := e.Accept(parcelID, carrier.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	p = reloadParcel(t, db, parcelID)
	if p.Status != models.StatusAccepted {
		t.Fatalf("after accept: got status %s", p.Status)
	}
	if !p.CapacityReserved {
		t.Error("capacity_reserved not set after accept")
	}
	if got := reloadTrip(t, db, trip.ID).AvailableWeightKg; got != 6 {
		t.Errorf("available weight after accept: got %v, want 6", got)
	}

	if err := e.MarkInTransit(parcelID, carrier.ID); err != nil {
		t.Fatalf("MarkInTransit: %v", err)
	}

	if _, err := e.ConfirmDelivery(parcelID, carrier.ID, "0000"); !errors.Is(err, ErrInvalidPin) {
		t.Fatalf("wrong PIN: got %v, want ErrInvalidPin", err)
	}
	p = reloadParcel(t, db, parcelID)
	if p.Status != models.StatusInTransit || p.EscrowStatus != models.EscrowHeld {
		t.Fatalf("state changed on wrong PIN: (%s, %s)", p.Status, p.EscrowStatus)
	}

	settlement, err := e.ConfirmDelivery(parcelID, carrier.ID, booking.Pin)
	if err != nil {
		t.Fatalf("ConfirmDelivery: %v", err)
	}
	if settlement.PlatformFeeCents != 200 || settlement.CarrierPayoutCents != 1800 {
		t.Errorf("settlement: got fee %d payout %d, want 200/1800", settlement.PlatformFeeCents, settlement.CarrierPayoutCents)
	}
	p = reloadParcel(t, db, parcelID)
	if p.Status != models.StatusDelivered || p.EscrowStatus != models.EscrowReleased {
		t.Fatalf("after delivery: got (%s, %s), want (delivered, released)", p.Status, p.EscrowStatus)
	}
	if p.PayoutAt == nil {
		t.Error("payout_at not stamped")
	}
	if n := countTxns(t, db, parcelID, models.TxnTypePayout); n != 1 {
		t.Fatalf("payout ledger rows: got %d, want 1", n)
	}

	// Retried confirmation is an idempotent no-op.
	if _, err := e.ConfirmDelivery(parcelID, carrier.ID, booking.Pin); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("second delivery confirmation: got %v, want ErrAlreadyProcessed", err)
	}
	if n := countTxns(t, db, parcelID, models.TxnTypePayout); n != 1 {
		t.Fatalf("payout rows after retry: got %d, want 1", n)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	e, _, db := newTestEngine(t)
	sender, carrier, trip := seedTrip(t, db, 10, 5)

	if _, err := e.CreateBooking(sender.ID, trip.ID, 11, "Too heavy", ""); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("over-capacity booking: got %v, want ErrCapacityExceeded", err)
	}
	if _, err := e.CreateBooking(sender.ID, trip.ID, 0, "Weightless", ""); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("zero-weight booking: got %v, want ErrCapacityExceeded", err)
	}
	if _, err := e.CreateBooking(carrier.ID, trip.ID, 2, "Own trip", ""); !errors.Is(err, ErrOwnTrip) {
		t.Errorf("own-trip booking: got %v, want ErrOwnTrip", err)
	}

	db.Model(&trip).Update("is_active", false)
	if _, err := e.CreateBooking(sender.ID, trip.ID, 2, "Inactive", ""); !errors.Is(err, ErrTripInactive) {
		t.Errorf("inactive-trip booking: got %v, want ErrTripInactive", err)
	}
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	e, _, db := newTestEngine(t)
	sender, _, trip := seedTrip(t, db, 10, 5)

	booking, err := e.CreateBooking(sender.ID, trip.ID, 4, "Books", "")
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	payBooking(t, e, sender.ID, booking.Parcel.ID)

	err = e.ConfirmPayment(booking.Parcel.ID, sender.ID)
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("second confirmation: got %v, want ErrAlreadyProcessed", err)
	}
	if n := countTxns(t, db, booking.Parcel.ID, models.TxnTypeCharge); n != 1 {
		t.Fatalf("charge rows after double confirm: got %d, want 1", n)
	}

	p := reloadParcel(t, db, booking.Parcel.ID)
	if p.EscrowStatus != models.EscrowHeld {
		t.Errorf("escrow status: got %s, want held", p.EscrowStatus)
	}
}

func TestBeginPaymentAfterCapture(t *testing.T) {
	e, _, db := newTestEngine(t)
	sender, _, trip := seedTrip(t, db, 10, 5)

	booking, _ := e.CreateBooking(sender.ID, trip.ID, 4, "Shoes", "")
	payBooking(t, e, sender.ID, booking.Parcel.ID)

	if _, err := e.BeginPayment(booking.Parcel.ID, sender.ID); !errors.Is(err, ErrAlreadyPaid) {
		t.Errorf("checkout after capture: got %v, want ErrAlreadyPaid", err)
	}
}

func TestAcceptGuards(t *testing.T) {
	e, _, db := newTestEngine(t)
	sender, carrier, trip := seedTrip(t, db, 10, 5)

	booking, _ := e.CreateBooking(sender.ID, trip.ID, 4, "Guitar", "")
	parcelID := booking.Parcel.ID

	if err := e.Accept(parcelID, carrier.ID); !errors.Is(err, ErrPaymentNotHeld) {
		t.Errorf("accept before payment: got %v, want ErrPaymentNotHeld", err)
	}

	payBooking(t, e, sender.ID, parcelID)

	if err := e.Accept(parcelID, sender.ID); !errors.Is(err, ErrNotCarrier) {
		t.Errorf("accept by sender: got %v, want ErrNotCarrier", err)
	}

	if err := e.Accept(parcelID, carrier.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := e.Accept(parcelID, carrier.ID); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("second accept: got %v, want ErrPreconditionFailed", err)
	}
	if got := reloadTrip(t, db, trip.ID).AvailableWeightKg; got != 6 {
		t.Errorf("capacity debited more than once: available %v, want 6", got)
	}
}

func TestCapacityInvariantAcrossBookings(t *testing.T) {
	e, _, db := newTestEngine(t)
	sender, carrier, trip := seedTrip(t, db, 10, 5)

	other := models.User{FullName: "Second Sender", Email: uuid.NewString() + "@example.com", Password: "x", Role: "user"}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("seed second sender: %v", err)
	}

	first, _ := e.CreateBooking(sender.ID, trip.ID, 4, "One", "")
	second, _ := e.CreateBooking(other.ID, trip.ID, 3, "Two", "")

	payBooking(t, e, sender.ID, first.Parcel.ID)
	payBooking(t, e, other.ID, second.Parcel.ID)

	if err := e.Accept(first.Parcel.ID, carrier.ID); err != nil {
		t.Fatalf("accept first: %v", err)
	}
	if err := e.Accept(second.Parcel.ID, carrier.ID); err != nil {
		t.Fatalf("accept second: %v", err)
	}

	if got := reloadTrip(t, db, trip.ID).AvailableWeightKg; got != 3 {
		t.Errorf("available weight: got %v, want total 10 - (4+3) = 3", got)
	}

	if err := e.Refund(first.Parcel.ID, Initiator{Admin: true}, "test"); err != nil {
		t.Fatalf("refund first: %v", err)
	}
	if got := reloadTrip(t, db, trip.ID).AvailableWeightKg; got != 7 {
		t.Errorf("available weight after refund: got %v, want 7", got)
	}
}

func TestRejectHeldRefundsAtGateway(t *testing.T) {
	e, gw, db := newTestEngine(t)
	sender, carrier, trip := seedTrip(t, db, 10, 5)

	booking, _ := e.CreateBooking(sender.ID, trip.ID, 4, "Watch", "")
	payBooking(t, e, sender.ID, booking.Parcel.ID)

	if err := e.Reject(booking.Parcel.ID, sender.ID); !errors.Is(err, ErrNotCarrier) {
		t.Fatalf("reject by sender: got %v, want ErrNotCarrier", err)
	}

	if err := e.Reject(booking.Parcel.ID, carrier.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if gw.refundCalls != 1 {
		t.Errorf("gateway refund calls: got %d, want 1", gw.refundCalls)
	}
	p := reloadParcel(t, db, booking.Parcel.ID)
	if p.Status != models.StatusCancelled || p.EscrowStatus != models.EscrowRefunded {
		t.Fatalf("after reject: got (%s, %s), want (cancelled, refunded)", p.Status, p.EscrowStatus)
	}
	if n := countTxns(t, db, booking.Parcel.ID, models.TxnTypeRefund); n != 1 {
		t.Fatalf("refund ledger rows: got %d, want 1", n)
	}
}

func TestRejectUnpaidCancelsWithoutLedger(t *testing.T) {
	e, gw, db := newTestEngine(t)
	sender, carrier, trip := seedTrip(t, db, 10, 5)

	booking, _ := e.CreateBooking(sender.ID, trip.ID, 4, "Letters", "")

	if err := e.Reject(booking.Parcel.ID, carrier.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if gw.refundCalls != 0 {
		t.Errorf("gateway called for a booking that was never charged")
	}
	p := reloadParcel(t, db, booking.Parcel.ID)
	if p.Status != models.StatusCancelled || p.EscrowStatus != models.EscrowRefunded {
		t.Fatalf("after reject: got (%s, %s), want (cancelled, refunded)", p.Status, p.EscrowStatus)
	}
	if n := countTxns(t, db, booking.Parcel.ID, models.TxnTypeRefund); n != 0 {
		t.Fatalf("refund ledger rows for uncharged booking: got %d, want 0", n)
	}
}

// Mirrors the full reservation scenario: after accept, reject is no longer
// legal and only refund can unwind the booking, restoring trip capacity.
func TestRefundAfterAcceptRestoresCapacity(t *testing.T) {
	e, _, db := newTestEngine(t)
	sender, carrier, trip := seedTrip(t, db, 10, 5)

	booking, _ := e.CreateBooking(sender.ID, trip.ID, 4, "Parts", "")
	payBooking(t, e, sender.ID, booking.Parcel.ID)
	if err := e.Accept(booking.Parcel.ID, carrier.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got := reloadTrip(t, db, trip.ID).AvailableWeightKg; got != 6 {
		t.Fatalf("available weight after accept: got %v, want 6", got)
	}

	if err := e.Reject(booking.Parcel.ID, carrier.ID); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("reject after accept: got %v, want ErrPreconditionFailed", err)
	}

	if err := e.Refund(booking.Parcel.ID, Initiator{Admin: true}, "dispute"); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	p := reloadParcel(t, db, booking.Parcel.ID)
	if p.Status != models.StatusCancelled || p.EscrowStatus != models.EscrowRefunded {
		t.Fatalf("after refund: got (%s, %s), want (cancelled, refunded)", p.Status, p.EscrowStatus)
	}
	if p.CapacityReserved {
		t.Error("capacity_reserved still set after refund")
	}
	if got := reloadTrip(t, db, trip.ID).AvailableWeightKg; got != 10 {
		t.Errorf("available weight after refund: got %v, want 10", got)
	}

	// A second refund attempt must not credit the trip again.
	if err := e.Refund(booking.Parcel.ID, Initiator{Admin: true}, "dispute"); !errors.Is(err, ErrAlreadyRefunded) {
		t.Fatalf("second refund: got %v, want ErrAlreadyRefunded", err)
	}
	if got := reloadTrip(t, db, trip.ID).AvailableWeightKg; got != 10 {
		t.Errorf("available weight after repeated refund: got %v, want 10", got)
	}
	if n := countTxns(t, db, booking.Parcel.ID, models.TxnTypeRefund); n != 1 {
		t.Fatalf("refund ledger rows: got %d, want 1", n)
	}
}

func TestRefundGuards(t *testing.T) {
	e, _, db := newTestEngine(t)
	sender, carrier, trip := seedTrip(t, db, 10, 5)

	booking, _ := e.CreateBooking(sender.ID, trip.ID, 4, "Vase", "")
	parcelID := booking.Parcel.ID
	payBooking(t, e, sender.ID, parcelID)

	stranger := models.User{FullName: "Stranger", Email: uuid.NewString() + "@example.com", Password: "x", Role: "user"}
	if err := db.Create(&stranger).Error; err != nil {
		t.Fatalf("seed stranger: %v", err)
	}
	if err := e.Refund(parcelID, Initiator{UserID: stranger.ID}, ""); !errors.Is(err, ErrNotSender) {
		t.Errorf("refund by stranger: got %v, want ErrNotSender", err)
	}

	if err := e.Accept(parcelID, carrier.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	// Sender may only refund before the carrier accepted.
	if err := e.Refund(parcelID, Initiator{UserID: sender.ID}, ""); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("sender refund after accept: got %v, want ErrPreconditionFailed", err)
	}

	if err := e.MarkInTransit(parcelID, carrier.ID); err != nil {
		t.Fatalf("MarkInTransit: %v", err)
	}
	if _, err := e.ConfirmDelivery(parcelID, carrier.ID, booking.Pin); err != nil {
		t.Fatalf("ConfirmDelivery: %v", err)
	}
	if err := e.Refund(parcelID, Initiator{Admin: true}, ""); !errors.Is(err, ErrCannotRefundReleased) {
		t.Errorf("refund after release: got %v, want ErrCannotRefundReleased", err)
	}
}

func TestSenderRefundBeforeAcceptance(t *testing.T) {
	e, gw, db := newTestEngine(t)
	sender, _, trip := seedTrip(t, db, 10, 5)

	booking, _ := e.CreateBooking(sender.ID, trip.ID, 2, "Gift", "")
	payBooking(t, e, sender.ID, booking.Parcel.ID)

	if err := e.Refund(booking.Parcel.ID, Initiator{UserID: sender.ID}, "changed my mind"); err != nil {
		t.Fatalf("sender refund pre-acceptance: %v", err)
	}
	if gw.refundCalls != 1 {
		t.Errorf("gateway refund calls: got %d, want 1", gw.refundCalls)
	}
	p := reloadParcel(t, db, booking.Parcel.ID)
	if p.Status != models.StatusCancelled || p.EscrowStatus != models.EscrowRefunded {
		t.Fatalf("after refund: got (%s, %s)", p.Status, p.EscrowStatus)
	}
}

func TestRefundNeverChargedBooking(t *testing.T) {
	e, gw, db := newTestEngine(t)
	sender, _, trip := seedTrip(t, db, 10, 5)

	booking, _ := e.CreateBooking(sender.ID, trip.ID, 2, "Samples", "")

	if err := e.Refund(booking.Parcel.ID, Initiator{UserID: sender.ID}, ""); err != nil {
		t.Fatalf("refund of unpaid booking: %v", err)
	}
	if gw.refundCalls != 0 {
		t.Error("gateway called for a booking that was never charged")
	}
	if n := countTxns(t, db, booking.Parcel.ID, models.TxnTypeRefund); n != 0 {
		t.Errorf("ledger rows for uncharged refund: got %d, want 0", n)
	}
	p := reloadParcel(t, db, booking.Parcel.ID)
	if p.Status != models.StatusCancelled || p.EscrowStatus != models.EscrowRefunded {
		t.Fatalf("after refund: got (%s, %s)", p.Status, p.EscrowStatus)
	}
}

func TestGatewayFailureSurfaces(t *testing.T) {
	e, gw, db := newTestEngine(t)
	sender, carrier, trip := seedTrip(t, db, 10, 5)

	booking, _ := e.CreateBooking(sender.ID, trip.ID, 4, "Tablet", "")
	payBooking(t, e, sender.ID, booking.Parcel.ID)

	gw.refundErr = errors.New("processor unavailable")
	err := e.Reject(booking.Parcel.ID, carrier.ID)
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("reject with failing gateway: got %v, want GatewayError", err)
	}

	// Nothing moved locally; the retry succeeds once the processor is back.
	p := reloadParcel(t, db, booking.Parcel.ID)
	if p.Status != models.StatusPending || p.EscrowStatus != models.EscrowHeld {
		t.Fatalf("state changed despite gateway failure: (%s, %s)", p.Status, p.EscrowStatus)
	}
	gw.refundErr = nil
	if err := e.Reject(booking.Parcel.ID, carrier.ID); err != nil {
		t.Fatalf("retried reject: %v", err)
	}
}

func TestExpireStaleBookings(t *testing.T) {
	e, _, db := newTestEngine(t)
	sender, _, trip := seedTrip(t, db, 20, 5)

	stale, _ := e.CreateBooking(sender.ID, trip.ID, 4, "Old", "")
	fresh, _ := e.CreateBooking(sender.ID, trip.ID, 3, "New", "")
	unpaid, _ := e.CreateBooking(sender.ID, trip.ID, 2, "Unpaid", "")

	payBooking(t, e, sender.ID, stale.Parcel.ID)
	payBooking(t, e, sender.ID, fresh.Parcel.ID)

	old := time.Now().Add(-100 * time.Hour)
	if err := db.Model(&models.Parcel{}).Where("id = ?", stale.Parcel.ID).Update("paid_at", old).Error; err != nil {
		t.Fatalf("backdate paid_at: %v", err)
	}

	refunded, err := e.ExpireStaleBookings(time.Now().Add(-72 * time.Hour))
	if err != nil {
		t.Fatalf("ExpireStaleBookings: %v", err)
	}
	if len(refunded) != 1 || refunded[0] != stale.Parcel.ID {
		t.Fatalf("refunded %v, want exactly the stale booking", refunded)
	}

	if got := reloadParcel(t, db, stale.Parcel.ID).EscrowStatus; got != models.EscrowRefunded {
		t.Errorf("stale booking escrow: got %s, want refunded", got)
	}
	if got := reloadParcel(t, db, fresh.Parcel.ID).EscrowStatus; got != models.EscrowHeld {
		t.Errorf("fresh booking escrow: got %s, want held", got)
	}
	if got := reloadParcel(t, db, unpaid.Parcel.ID).EscrowStatus; got != models.EscrowAwaitingPayment {
		t.Errorf("unpaid booking escrow: got %s, want awaiting_payment", got)
	}

	// A second sweep finds nothing left to do.
	refunded, err = e.ExpireStaleBookings(time.Now().Add(-72 * time.Hour))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(refunded) != 0 {
		t.Errorf("second sweep refunded %v, want none", refunded)
	}
}
