// Package clock is the time source of the pipeline, replaceable in tests.
package clock

import "time"

var nowFunc = time.Now

// Now returns the current time from the configured clock function.
func Now() time.Time {
	return nowFunc()
}

// Since is time.Since measured against Now.
func Since(start time.Time) time.Duration {
	return Now().Sub(start)
}

// SetNowForTest overrides the clock source and returns a restore function.
func SetNowForTest(fn func() time.Time) func() {
	previous := nowFunc
	nowFunc = fn
	return func() {
		nowFunc = previous
	}
}

// Stepper returns a clock function that starts at start and advances by step on
// every call.
func Stepper(start time.Time, step time.Duration) func() time.Time {
	current := start.Add(-step)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}
