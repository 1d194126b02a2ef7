package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// PickupCodeService issues and checks the numeric codes recipients present at collection
type PickupCodeService interface {
	// Generate returns a fresh code and its bcrypt hash
	Generate() (code string, hash string, err error)
	Verify(hash, code string) bool
}

type pickupCodeServiceImpl struct {
	cost   int
	digits int
}

// NewPickupCodeService creates a pickup code service. A cost outside bcrypt's range uses bcrypt.DefaultCost.
func NewPickupCodeService(cost, digits int) PickupCodeService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if digits <= 0 {
		digits = 6
	}
	return &pickupCodeServiceImpl{cost: cost, digits: digits}
}

func (s *pickupCodeServiceImpl) Generate() (string, string, error) {
	code, err := randomDigits(s.digits)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate pickup code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash pickup code: %w", err)
	}
	return code, string(hash), nil
}

func (s *pickupCodeServiceImpl) Verify(hash, code string) bool {
	if hash == "" || code == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	return err == nil
}

// randomDigits returns n uniformly random decimal digits; leading zeros are kept
func randomDigits(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("digit count must be positive")
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}
