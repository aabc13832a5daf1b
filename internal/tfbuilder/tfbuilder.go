// Package tfbuilder resamples a bar series into a coarser timeframe, e.g.
// one-minute bars into hourly bars. Buckets are aligned to the Unix epoch, so
// hourly buckets start on the hour and daily buckets at 00:00 UTC.
package tfbuilder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"trading-signals/internal/model"
)

// ParseTimeframe accepts "30s", "5m", "1h", "4h" style durations plus "Nd"
// for whole days. The result is a positive whole number of seconds.
func ParseTimeframe(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	var d time.Duration
	if n, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("invalid timeframe %q", s)
		}
		d = time.Duration(days) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, fmt.Errorf("invalid timeframe %q: %w", s, err)
		}
	}
	if d < time.Second || d%time.Second != 0 {
		return 0, fmt.Errorf("timeframe %q must be a positive whole number of seconds", s)
	}
	return d, nil
}

// Builder merges bars into timeframe buckets one bar at a time.
// Not safe for concurrent use.
type Builder struct {
	tf      int64 // seconds
	bucket  int64
	bar     model.Bar
	started bool
	stale   int

	// OnBar is called for every finalized bar (optional).
	OnBar func(b model.Bar)
}

// New creates a builder for timeframe tf (at least one second).
func New(tf time.Duration) *Builder {
	sec := int64(tf / time.Second)
	if sec < 1 {
		sec = 1
	}
	return &Builder{tf: sec}
}

// Add merges b into the forming bucket. When b opens a new bucket the
// previous one is finalized and returned with ok=true. Bars older than the
// forming bucket are dropped and counted in Stale.
func (b *Builder) Add(in model.Bar) (done model.Bar, ok bool) {
	ts := in.Time.Unix()
	bucket := ts - mod(ts, b.tf)

	if b.started && bucket < b.bucket {
		b.stale++
		return model.Bar{}, false
	}
	if b.started && bucket > b.bucket {
		done, ok = b.bar, true
		if b.OnBar != nil {
			b.OnBar(done)
		}
		b.started = false
	}
	if !b.started {
		b.bucket, b.started = bucket, true
		b.bar = model.Bar{
			Time:  time.Unix(bucket, 0).UTC(),
			Open:  in.Open,
			High:  in.High,
			Low:   in.Low,
			Close: in.Close,
		}
		return done, ok
	}

	// Same bucket: merge OHLC.
	if in.High > b.bar.High {
		b.bar.High = in.High
	}
	if in.Low < b.bar.Low {
		b.bar.Low = in.Low
	}
	b.bar.Close = in.Close
	return done, ok
}

// Forming returns the bucket under construction, if any.
func (b *Builder) Forming() (model.Bar, bool) {
	return b.bar, b.started
}

// Flush finalizes and returns the forming bucket.
func (b *Builder) Flush() (model.Bar, bool) {
	if !b.started {
		return model.Bar{}, false
	}
	b.started = false
	if b.OnBar != nil {
		b.OnBar(b.bar)
	}
	return b.bar, true
}

// Stale returns how many out-of-order bars were dropped.
func (b *Builder) Stale() int { return b.stale }

// Resample converts an ascending bar series to timeframe tf. The last
// bucket is included even if it is still forming.
func Resample(bars []model.Bar, tf time.Duration) []model.Bar {
	if len(bars) == 0 {
		return nil
	}
	b := New(tf)
	out := make([]model.Bar, 0, len(bars)/2+1)
	for _, in := range bars {
		if done, ok := b.Add(in); ok {
			out = append(out, done)
		}
	}
	if last, ok := b.Flush(); ok {
		out = append(out, last)
	}
	return out
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
