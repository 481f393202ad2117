package jobs

import (
	"log"
	"time"

	"github.com/globalcarry/globalcarry/escrow"
)

// Engine is wired in from main before the cron scheduler starts.
var Engine *escrow.Engine

// AcceptTimeout is how long a carrier gets to act on a paid booking before
// the sweep refunds it. Set from platform config at startup.
var AcceptTimeout = 72 * time.Hour

// ExpireUnacceptedBookings refunds paid bookings whose carrier never
// accepted or rejected within the accept window. Each stale booking goes
// through the engine's idempotent refund path, so an overlapping or
// repeated sweep cannot double-refund.
func ExpireUnacceptedBookings() {
	cutoff := time.Now().Add(-AcceptTimeout)

	refunded, err := Engine.ExpireStaleBookings(cutoff)
	if err != nil {
		log.Printf("🔥 Booking expiry sweep failed: %v", err)
	}
	if len(refunded) > 0 {
		log.Printf("✅ Expired and refunded %d unaccepted bookings", len(refunded))
	}
}
