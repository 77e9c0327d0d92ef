package credential

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

// OTPGenerator produces one-time verification codes. Outside production it
// returns a fixed code so flows can be exercised without reading email.
type OTPGenerator struct {
	random bool
	fixed  string
	min    int
	max    int
}

// NewOTPGenerator builds a generator. When random is false, fixed is always returned.
func NewOTPGenerator(random bool, fixed string, min, max int) OTPGenerator {
	return OTPGenerator{random: random, fixed: fixed, min: min, max: max}
}

// Generate returns a code in [min, max) or the fixed code.
func (g OTPGenerator) Generate() (string, error) {
	if !g.random {
		return g.fixed, nil
	}
	if g.max <= g.min {
		return "", fmt.Errorf("invalid otp range [%d, %d)", g.min, g.max)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(g.max-g.min)))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return strconv.FormatInt(n.Int64()+int64(g.min), 10), nil
}
