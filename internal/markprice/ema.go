package markprice

import (
	"math"
	"time"
)

// EMA is a continuous, time-weighted exponential moving average: elapsed
// wall-clock time is the weight, not sample count.
type EMA struct {
	tauMinutes  float64
	numerator   float64
	denominator float64
	lastUpdate  time.Time
	hasUpdate   bool
}

// NewEMA builds an EMA with the given time constant.
func NewEMA(tau time.Duration) *EMA {
	return &EMA{tauMinutes: tau.Minutes()}
}

// Update folds in one sample observed at now, returning the EMA's current
// value. The first call initializes num := sample, den := 1.
func (e *EMA) Update(sample float64, now time.Time) float64 {
	if !e.hasUpdate {
		e.numerator = sample
		e.denominator = 1
		e.lastUpdate = now
		e.hasUpdate = true
		return sample
	}

	t := now.Sub(e.lastUpdate).Minutes()
	decay := math.Exp(-t / e.tauMinutes)

	e.numerator = e.numerator*decay + sample*t
	e.denominator = e.denominator*decay + t
	e.lastUpdate = now

	if e.denominator > 0 {
		return e.numerator / e.denominator
	}
	return sample
}

// Value returns the EMA's current value, if any sample has been observed.
func (e *EMA) Value() (float64, bool) {
	if e.denominator > 0 {
		return e.numerator / e.denominator, true
	}
	return 0, false
}
