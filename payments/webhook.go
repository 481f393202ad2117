package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/globalcarry/globalcarry/escrow"
)

// SignatureTolerance bounds how stale a signed webhook timestamp may be
// before the delivery is rejected as a possible replay.
const SignatureTolerance = 5 * time.Minute

// VerifySignature checks a Stripe-Signature header ("t=<ts>,v1=<hmac>,...")
// against the raw payload. The expected MAC is HMAC-SHA256 over
// "<timestamp>.<payload>" with the endpoint's shared secret; comparison is
// constant time. Fails closed on any malformed input.
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	if header == "" || secret == "" {
		return escrow.ErrSignatureInvalid
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return escrow.ErrSignatureInvalid
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return escrow.ErrSignatureInvalid
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > SignatureTolerance || age < -SignatureTolerance {
		return escrow.ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		got, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			return nil
		}
	}
	return escrow.ErrSignatureInvalid
}

// SignPayload produces a Stripe-Signature header value for a payload.
// Used by tests and local tooling to emit verifiable deliveries.
func SignPayload(payload []byte, secret string, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
