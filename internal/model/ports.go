package model

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownSymbol is returned by a BarSource that holds no bars for a ticker.
var ErrUnknownSymbol = errors.New("unknown symbol")

// ── Source Port Interfaces ──
// These interfaces decouple the engine service from concrete bar stores
// (files, SQLite, Redis). The engine itself never calls them.

// BarQuery selects bars for one ticker. Zero From/To are open bounds;
// Limit > 0 keeps only the most recent Limit bars.
type BarQuery struct {
	Ticker string
	From   time.Time
	To     time.Time
	Limit  int
}

// BarSource supplies a chronologically ordered bar series.
type BarSource interface {
	// Name identifies the source in logs and metrics ("file", "sqlite", "redis").
	Name() string

	// Bars returns bars oldest first. Returns ErrUnknownSymbol if the ticker
	// has no data at all.
	Bars(ctx context.Context, q BarQuery) ([]Bar, error)

	// Close releases underlying resources.
	Close() error
}

// BarWriter stores bars delivered by a data provider.
type BarWriter interface {
	WriteBars(ctx context.Context, ticker string, bars []Bar) error
	Close() error
}

// Window applies the time bounds and limit of q to an ordered bar slice.
// Shared by sources that cannot push the filter down to storage.
func (q BarQuery) Window(bars []Bar) []Bar {
	lo, hi := 0, len(bars)
	if !q.From.IsZero() {
		for lo < hi && bars[lo].Time.Before(q.From) {
			lo++
		}
	}
	if !q.To.IsZero() {
		for hi > lo && bars[hi-1].Time.After(q.To) {
			hi--
		}
	}
	out := bars[lo:hi]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out
}
