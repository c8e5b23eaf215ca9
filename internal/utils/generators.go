package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const sessionIDCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GeneratePaymentSessionID returns a "PAY-" prefixed id readable enough to be
// relayed over the phone. Ambiguous characters (0/O, 1/I) are excluded.
func GeneratePaymentSessionID() string {
	return "PAY-" + randomFromCharset(10)
}

// GenerateOrderID returns an "ORD-" prefixed id in the same alphabet as
// payment session ids.
func GenerateOrderID() string {
	return "ORD-" + randomFromCharset(10)
}

func randomFromCharset(length int) string {
	max := big.NewInt(int64(len(sessionIDCharset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			return uuid.NewString()[:length]
		}
		out[i] = sessionIDCharset[n.Int64()]
	}
	return string(out)
}

func GenerateTransactionID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999999))
	return fmt.Sprintf("txn_%d_%09d", timestamp, randomNum.Int64())
}

// GenerateAPIKey returns a 64-character hex key for kiosk agents. Only the
// bcrypt hash is persisted.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func GenerateUUID() string {
	return uuid.NewString()
}

func UnixTimeToTime(ts int64) time.Time {
	return time.Unix(ts, 0)
}
