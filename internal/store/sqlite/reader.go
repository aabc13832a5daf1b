package sqlite

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"trading-signals/internal/model"
)

func (s *Store) Name() string { return "sqlite" }

// Bars reads bars for q.Ticker ordered by timestamp ascending. Time bounds
// and the limit are applied in SQL.
func (s *Store) Bars(ctx context.Context, q model.BarQuery) ([]model.Bar, error) {
	from, to := int64(math.MinInt64), int64(math.MaxInt64)
	if !q.From.IsZero() {
		from = q.From.Unix()
	}
	if !q.To.IsZero() {
		to = q.To.Unix()
	}
	limit := -1
	if q.Limit > 0 {
		limit = q.Limit
	}

	// Newest first so LIMIT keeps the most recent bars; reversed below.
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close
		FROM bars
		WHERE ticker = ? AND ts >= ? AND ts <= ?
		ORDER BY ts DESC
		LIMIT ?
	`, q.Ticker, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		if err := rows.Scan(&tsUnix, &b.Open, &b.High, &b.Low, &b.Close); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.Time = time.Unix(tsUnix, 0).UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(bars) == 0 {
		known, err := s.hasTicker(ctx, q.Ticker)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("sqlite: %s: %w", q.Ticker, model.ErrUnknownSymbol)
		}
	}
	slices.Reverse(bars)
	return bars, nil
}

// Tickers lists every ticker with stored bars.
func (s *Store) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ticker FROM bars ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query tickers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) hasTicker(ctx context.Context, ticker string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM (SELECT 1 FROM bars WHERE ticker = ? LIMIT 1)`, ticker).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite lookup %s: %w", ticker, err)
	}
	return n > 0, nil
}
