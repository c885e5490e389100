// Package random provides the jitter source for reconnect backoff, replaceable in tests.
package random

import (
	"math/rand/v2"
	"time"
)

var intNFunc = rand.IntN

// IntN returns, as an int, a non-negative pseudo-random number in [0,n).
func IntN(n int) int {
	return intNFunc(n)
}

// SetIntNForTest overrides the random source and returns a restore function.
func SetIntNForTest(fn func(int) int) func() {
	previous := intNFunc
	intNFunc = fn
	return func() {
		intNFunc = previous
	}
}

// Jitter returns d shifted by up to a quarter of d in either direction.
func Jitter(d time.Duration) time.Duration {
	spread := int(d / 4)
	if spread <= 0 {
		return d
	}
	return d - time.Duration(spread) + time.Duration(IntN(2*spread+1))
}
