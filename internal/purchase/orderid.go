package purchase

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

// NewOrderID returns a process-unique order identifier (hex, no dashes).
func NewOrderID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// NumericOrderID returns a generator of n-digit numeric order ids for banks that reject
// alphanumeric ids. Falls back to NewOrderID if the system random source fails.
func NumericOrderID(n int) func() string {
	if n <= 0 {
		n = 12
	}
	return func() string {
		id, err := randomDigits(n)
		if err != nil {
			return NewOrderID()
		}
		return id
	}
}

// randomDigits uses rejection sampling (bytes >= 250 are dropped) so every digit is equally likely.
func randomDigits(count int) (string, error) {
	const threshold = 250 // 256 - (256 % 10)
	var sb strings.Builder
	sb.Grow(count)
	buf := make([]byte, 32)
	for sb.Len() < count {
		n, err := rand.Read(buf)
		if err != nil {
			return "", err
		}
		for i := 0; i < n && sb.Len() < count; i++ {
			if b := buf[i]; b < threshold {
				sb.WriteByte('0' + (b % 10))
			}
		}
	}
	return sb.String(), nil
}
