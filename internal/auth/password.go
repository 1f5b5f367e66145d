package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt cost used for stored passwords.
const DefaultHashCost = 12

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// HashPassword returns the bcrypt hash of password at the given cost.
func HashPassword(password string, cost int) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), cost)
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// DummyHash hashes a throwaway password at cost. Comparing against it when a
// login names an unknown email costs the same as checking a stored hash of
// that cost.
func DummyHash(cost int) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte("cipherstudio-dummy"), cost)
}
