package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a bcrypt hash at the given cost. Used for both
// web passwords and 4-digit USSD PINs; short PINs lean entirely on the
// cost factor, which is why it is configurable rather than fixed.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
