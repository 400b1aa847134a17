package service

import (
	"fmt"
	"math/rand/v2"
)

const (
	accountNumberDigits = 10
	accountNumberSpace  = 10_000_000_000
	// maxNumberAttempts bounds account-number generation before giving up.
	maxNumberAttempts = 10
)

// NumberGenerator draws a candidate account number. Collisions are checked by the caller.
type NumberGenerator func() string

// RandomAccountNumbers draws uniformly from the 10-digit space, zero-padded.
func RandomAccountNumbers() NumberGenerator {
	return func() string {
		return fmt.Sprintf("%0*d", accountNumberDigits, rand.Int64N(accountNumberSpace))
	}
}
