package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a bcrypt hash using the given cost. Costs outside
// bcrypt's accepted range are clamped to it.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
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

// dummyHash is a valid bcrypt hash (cost 12) that matches no password in use.
const dummyHash = "$2a$12$C6UzMDM.H6dfI/f/IKcEeO5n1Jm0qM8QY6fX1sW5J4m1hG0Qq8s7e"

// BurnVerify performs a comparison against a throwaway hash so a login for
// an unknown account takes as long as one with a wrong password.
func BurnVerify(plain string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plain))
}
