package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// NewTicketAccessToken returns the capability token attached to every
// ticket at creation: 32 bytes of cryptographically secure randomness,
// hex-encoded to 64 characters.  The token is opaque and unguessable; it
// is never derived from the ticket id.
func NewTicketAccessToken() (string, error) {
	return randomHex(32)
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
