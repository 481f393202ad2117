package escrow

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// GeneratePin returns a random 4-digit delivery PIN (1000-9999).
func GeneratePin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}

// HashPin returns the SHA-256 hex digest of a PIN. The same digest is what
// senders' clients compute, so the stored hash stays comparable across
// surfaces.
func HashPin(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

// VerifyPin compares a candidate PIN against a stored hash in constant
// time. It reveals nothing about which part of the comparison failed.
func VerifyPin(pin, storedHash string) bool {
	candidate := HashPin(pin)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(storedHash)) == 1
}
