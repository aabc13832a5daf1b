package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedInput is returned (wrapped in a *BarError) when a bar series
// breaks the ordering or price invariants.
var ErrMalformedInput = errors.New("malformed input")

// Bar is one OHLC observation for a fixed interval.
// Prices are positive finite numbers; Time is the bucket start (UTC).
type Bar struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// BarError describes the first offending bar in a series.
type BarError struct {
	Index  int
	Field  string
	Reason string
}

func (e *BarError) Error() string {
	return fmt.Sprintf("bar %d: %s %s", e.Index, e.Field, e.Reason)
}

func (e *BarError) Unwrap() error { return ErrMalformedInput }

// ValidateBars checks that timestamps are strictly increasing and that every
// price is finite and positive. Bars are never repaired or dropped.
func ValidateBars(bars []Bar) error {
	for i := range bars {
		b := &bars[i]
		for _, p := range [...]struct {
			name string
			v    float64
		}{
			{"open", b.Open},
			{"high", b.High},
			{"low", b.Low},
			{"close", b.Close},
		} {
			if math.IsNaN(p.v) || math.IsInf(p.v, 0) {
				return &BarError{Index: i, Field: p.name, Reason: "is not finite"}
			}
			if p.v <= 0 {
				return &BarError{Index: i, Field: p.name, Reason: "is not positive"}
			}
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return &BarError{Index: i, Field: "time", Reason: "is not after the previous bar"}
		}
	}
	return nil
}

// Closes extracts the close prices as a fully defined Series.
func Closes(bars []Bar) Series {
	out := make(Series, len(bars))
	for i := range bars {
		out[i] = Some(bars[i].Close)
	}
	return out
}
