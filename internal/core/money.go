// Package core implements the financial aggregation and resolution engine:
// spending aggregation, balance roll-ups, budget summaries, goal progress,
// and rule-based categorization. Everything here is a pure function over
// caller-supplied data; persistence lives behind the store ports.
package core

import "math"

// Round2 rounds a monetary value to 2 decimal places, half away from zero.
// Rounding happens once, at the output boundary; intermediate sums stay
// unrounded so repeated additions do not compound drift.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
