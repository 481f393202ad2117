package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

func Config(key string) string {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("Warning: .env file not found, reading from system environment variables")
	}

	return os.Getenv(key)
}

// Platform holds the money-related settings that are read once at startup
// and injected into the escrow engine, instead of being re-read per request.
type Platform struct {
	FeePercent         float64
	Currency           string
	AcceptTimeoutHours int
	CheckoutSuccessURL string
	CheckoutCancelURL  string
}

func LoadPlatform() Platform {
	p := Platform{
		FeePercent:         10,
		Currency:           "usd",
		AcceptTimeoutHours: 72,
		CheckoutSuccessURL: Config("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:  Config("CHECKOUT_CANCEL_URL"),
	}

	if v := Config("PLATFORM_FEE_PERCENT"); v != "" {
		fee, err := strconv.ParseFloat(v, 64)
		if err != nil || fee < 0 || fee > 100 {
			log.Fatalf("🔥 Invalid PLATFORM_FEE_PERCENT: %q", v)
		}
		p.FeePercent = fee
	}
	if v := Config("PLATFORM_CURRENCY"); v != "" {
		p.Currency = v
	}
	if v := Config("BOOKING_ACCEPT_TIMEOUT_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			log.Fatalf("🔥 Invalid BOOKING_ACCEPT_TIMEOUT_HOURS: %q", v)
		}
		p.AcceptTimeoutHours = hours
	}

	return p
}
