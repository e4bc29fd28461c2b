package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewResetTicket mints a random single-use password reset ticket.
// The raw value goes to the user (via mail); only the hash is stored.
func NewResetTicket() (raw string, hash string, err error) {
	buf := make([]byte, 32)

	_, err = rand.Read(buf)

	if err != nil {
		return "", "", err
	}

	raw = hex.EncodeToString(buf)

	return raw, HashResetTicket(raw), nil
}

// HashResetTicket is the at-rest form of a ticket. Plain SHA-256 is enough
// here: tickets are high-entropy random values, not passwords.
func HashResetTicket(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
