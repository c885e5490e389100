// Package jsonnum turns the digits of a JSON number into a value without building
// an intermediate string. Both decoders feed it one digit at a time.
package jsonnum

import (
	"math"

	"github.com/jacoelho/feedjson/internal/value"
)

// maxExponent bounds the accumulated exponent; anything beyond is 0 or Inf anyway.
const maxExponent = 1 << 20

var pow10 = [...]float64{
	1e0, 1e1, 1e2, 1e3, 1e4, 1e5, 1e6, 1e7,
	1e8, 1e9, 1e10, 1e11, 1e12, 1e13, 1e14, 1e15,
	1e16, 1e17, 1e18, 1e19, 1e20, 1e21, 1e22,
}

// Accumulator collects sign, mantissa digits and exponent of one number.
// The zero value is ready for use.
type Accumulator struct {
	mant      uint64
	exp       int
	neg       bool
	real      bool
	truncated bool

	expVal int
	expNeg bool
}

// Reset prepares a for the next number.
func (a *Accumulator) Reset() {
	*a = Accumulator{}
}

// SetNegative records a leading minus sign.
func (a *Accumulator) SetNegative() { a.neg = true }

func (a *Accumulator) push(d uint64) bool {
	if a.mant > (math.MaxUint64-d)/10 {
		a.truncated = true
		return false
	}
	a.mant = a.mant*10 + d
	return true
}

// IntDigit appends a digit of the integer part.
func (a *Accumulator) IntDigit(c byte) {
	if !a.push(uint64(c - '0')) {
		a.exp++
	}
}

// FracDigit appends a digit of the fraction; the number becomes real.
func (a *Accumulator) FracDigit(c byte) {
	a.real = true
	if a.push(uint64(c - '0')) {
		a.exp--
	}
}

// StartExponent marks an exponent; the number becomes real.
func (a *Accumulator) StartExponent(negative bool) {
	a.real = true
	a.expNeg = negative
}

// ExpDigit appends a digit of the exponent.
func (a *Accumulator) ExpDigit(c byte) {
	if a.expVal < maxExponent {
		a.expVal = a.expVal*10 + int(c-'0')
	}
}

// Value returns an exact integer when no fraction or exponent was seen and the
// magnitude fits in int64, a float otherwise.
func (a *Accumulator) Value() *value.Value {
	if !a.real && !a.truncated {
		switch {
		case !a.neg && a.mant <= math.MaxInt64:
			return value.Int(int64(a.mant))
		case a.neg && a.mant <= math.MaxInt64:
			return value.Int(-int64(a.mant))
		case a.neg && a.mant == math.MaxInt64+1:
			return value.Int(math.MinInt64)
		}
	}

	exp := a.exp
	if a.expNeg {
		exp -= a.expVal
	} else {
		exp += a.expVal
	}

	f := scale(float64(a.mant), exp)
	if a.neg {
		f = -f
	}
	return value.Float(f)
}

// scale multiplies or divides f by ten |exp| times, 10^22 at a time.
func scale(f float64, exp int) float64 {
	for exp > 0 && f != 0 && !math.IsInf(f, 0) {
		step := min(exp, len(pow10)-1)
		f *= pow10[step]
		exp -= step
	}
	for exp < 0 && f != 0 {
		step := min(-exp, len(pow10)-1)
		f /= pow10[step]
		exp += step
	}
	return f
}
