package wallet

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Wallet is a user's stored-value account. Balance is in minor currency units.
type Wallet struct {
	ID        string
	UserID    string
	Number    int64
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	numberFloor = 1_000_000_000
	numberSpan  = 9_000_000_000
)

// GenerateNumber returns a random ten-digit wallet number.
func GenerateNumber() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(numberSpan))
	if err != nil {
		return 0, fmt.Errorf("generate wallet number: %w", err)
	}
	return n.Int64() + numberFloor, nil
}
