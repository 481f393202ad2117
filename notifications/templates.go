package notifications

import "fmt"

// Booking lifecycle emails. All of these are best-effort side effects.

func NotifyPaymentConfirmed(carrierName, carrierEmail, parcelTitle, senderName string) {
	SendEmail(carrierName, carrierEmail,
		"New Paid Booking Request",
		fmt.Sprintf("<h1>New Booking</h1><p>%s has booked and paid for delivery of <b>%s</b>. The payment is held in escrow until you confirm delivery. Please accept or decline the request.</p>", senderName, parcelTitle))
}

func NotifyBookingAccepted(senderName, senderEmail, parcelTitle string) {
	SendEmail(senderName, senderEmail,
		"Your Booking Was Accepted",
		fmt.Sprintf("<h1>Booking Accepted</h1><p>The carrier accepted your booking for <b>%s</b>. Your payment stays in escrow until you confirm delivery with your PIN.</p>", parcelTitle))
}

func NotifyBookingRejected(senderName, senderEmail, parcelTitle string) {
	SendEmail(senderName, senderEmail,
		"Your Booking Was Cancelled",
		fmt.Sprintf("<h1>Booking Cancelled</h1><p>Your booking for <b>%s</b> was cancelled. Any captured payment has been refunded to your original payment method.</p>", parcelTitle))
}

func NotifyInTransit(senderName, senderEmail, parcelTitle string) {
	SendEmail(senderName, senderEmail,
		"Your Parcel Is On Its Way",
		fmt.Sprintf("<h1>In Transit</h1><p>Your parcel <b>%s</b> is now in transit. Share your delivery PIN with the recipient so the carrier can confirm handover.</p>", parcelTitle))
}

func NotifyDelivered(carrierName, carrierEmail, parcelTitle string, payoutCents int64) {
	SendEmail(carrierName, carrierEmail,
		"Delivery Confirmed — Payout Released",
		fmt.Sprintf("<h1>Delivery Confirmed</h1><p>Delivery of <b>%s</b> was confirmed. Your payout of $%.2f has been released and will arrive with your next transfer.</p>", parcelTitle, float64(payoutCents)/100))
}
