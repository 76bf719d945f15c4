package order

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Crockford base32: no I, L, O, U, so numbers survive being read aloud.
const numberAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const numberSuffixLen = 8

// NewOrderNumber produces a human-readable order identifier from the date
// and a random disambiguator. Uniqueness is enforced by the database index,
// not by this function; collisions surface as a detectable creation failure
// and the caller retries with a fresh number.
func NewOrderNumber(now time.Time) string {
	buf := make([]byte, numberSuffixLen)
	_, _ = rand.Read(buf)
	suffix := make([]byte, numberSuffixLen)
	for i, b := range buf {
		suffix[i] = numberAlphabet[int(b)%len(numberAlphabet)]
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}
