package model

import (
	"fmt"
	"math"
)

// Score is a similarity or confidence value in [0, 1].
type Score float64

// Valid reports whether the score is a finite number.
func (s Score) Valid() bool {
	f := float64(s)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Value returns the score with NaN and infinities coerced to zero.
func (s Score) Value() float64 {
	if !s.Valid() {
		return 0
	}
	return float64(s)
}

// Percent renders the score as a one-decimal percentage, e.g. "87.5%".
// Non-finite scores render as "0.0%".
func (s Score) Percent() string {
	return fmt.Sprintf("%.1f%%", s.Value()*100)
}
