// Package rolling provides windowed statistics over a bar-aligned Series.
//
// Every function returns a new Series of the same length as its input.
// Elements that cannot be computed (window not yet filled, an undefined input
// inside the window, a zero divisor, or a float64 overflow) are undefined,
// never NaN or ±Inf.
package rolling

import (
	"math"

	"trading-signals/internal/model"
)

// SMA returns the simple moving average over window.
// out[i] is undefined for i < window-1.
func SMA(xs model.Series, window int) model.Series {
	out := make(model.Series, len(xs))
	if window < 1 {
		return out
	}

	// Summed per window, so an all-zero window averages to exactly zero.
	for i := window - 1; i < len(xs); i++ {
		if mean, ok := meanOf(xs[i-window+1 : i+1]); ok {
			out[i] = model.Some(mean)
		}
	}
	return out
}

// StdDev returns the sample standard deviation (n-1 divisor) over window,
// undefined on the same prefix as SMA. window=1 has a zero divisor and is
// therefore undefined everywhere.
func StdDev(xs model.Series, window int) model.Series {
	out := make(model.Series, len(xs))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(xs); i++ {
		w := xs[i-window+1 : i+1]
		mean, ok := meanOf(w)
		if !ok {
			continue
		}
		var ss float64
		for _, x := range w {
			d := x.V - mean
			ss += d * d
		}
		if sd := math.Sqrt(ss / float64(window-1)); finite(sd) {
			out[i] = model.Some(sd)
		}
	}
	return out
}

// EMA returns the exponential moving average with α = 2/(span+1).
// The average starts at the first defined input (ema = x) and is defined
// from there on. An undefined input later in the series yields an undefined
// output and leaves the running average untouched.
func EMA(xs model.Series, span int) model.Series {
	out := make(model.Series, len(xs))
	if span < 1 {
		return out
	}
	alpha := 2.0 / float64(span+1)

	var current float64
	seeded := false
	for i, x := range xs {
		if !x.OK {
			continue
		}
		if !seeded {
			current = x.V
			seeded = true
		} else {
			current = alpha*x.V + (1-alpha)*current
		}
		if finite(current) {
			out[i] = model.Some(current)
		}
	}
	return out
}

// Combine applies fn element-wise to two aligned series. The result is
// undefined wherever either input is undefined or fn reports !ok.
func Combine(a, b model.Series, fn func(x, y float64) (float64, bool)) model.Series {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make(model.Series, n)
	for i := 0; i < n; i++ {
		if !a[i].OK || !b[i].OK {
			continue
		}
		if v, ok := fn(a[i].V, b[i].V); ok && finite(v) {
			out[i] = model.Some(v)
		}
	}
	return out
}

// Sub returns a-b element-wise.
func Sub(a, b model.Series) model.Series {
	return Combine(a, b, func(x, y float64) (float64, bool) { return x - y, true })
}

func meanOf(w model.Series) (float64, bool) {
	var sum float64
	for _, x := range w {
		if !x.OK {
			return 0, false
		}
		sum += x.V
	}
	mean := sum / float64(len(w))
	return mean, finite(mean)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
