// Package security wraps credential hashing so handlers never touch bcrypt
// directly.
package security

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password with bcrypt at the default cost.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a stored bcrypt hash with a plaintext candidate.
// bcrypt's comparison is constant-time with respect to the hash.
func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// PasswordMatches reports whether plain verifies against hash.
func PasswordMatches(hash, plain string) bool {
	return CheckPassword(hash, plain) == nil
}
