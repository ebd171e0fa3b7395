package utils

import "golang.org/x/crypto/bcrypt"

// MaxPasswordBytes is bcrypt's input limit, counted in bytes.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned for passwords over MaxPasswordBytes.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// HashPassword returns bcrypt hash using the given cost. A cost outside
// bcrypt's range falls back to bcrypt.DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
	if len(plain) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
