// Package markethours tells whether a market is trading. Crypto trades
// around the clock; forex runs from Sunday 22:00 to Friday 22:00 UTC and
// closes on a few global holidays.
package markethours

import (
	"fmt"
	"time"

	"trading-signals/internal/model"
)

// Forex session boundaries (UTC).
const (
	ForexOpenHour  = 22 // Sunday
	ForexCloseHour = 22 // Friday
)

// IsOpen reports whether market is trading at t.
func IsOpen(market model.Market, t time.Time) bool {
	if market != model.MarketForex {
		return true
	}
	u := t.UTC()
	if IsForexHoliday(u) {
		return false
	}
	switch u.Weekday() {
	case time.Saturday:
		return false
	case time.Sunday:
		return u.Hour() >= ForexOpenHour
	case time.Friday:
		return u.Hour() < ForexCloseHour
	}
	return true
}

// NextOpen returns the first instant at or after t when market is trading.
func NextOpen(market model.Market, t time.Time) time.Time {
	u := t.UTC()
	if IsOpen(market, u) {
		return u
	}
	// Forex reopens on an hour boundary; walk hour by hour (at most ~3 days).
	next := u.Truncate(time.Hour).Add(time.Hour)
	for i := 0; i < 24*8; i++ {
		if IsOpen(market, next) {
			return next
		}
		next = next.Add(time.Hour)
	}
	return next
}

// NextClose returns when the current session ends, or the zero time for
// markets that never close or are already closed.
func NextClose(market model.Market, t time.Time) time.Time {
	u := t.UTC()
	if market != model.MarketForex || !IsOpen(market, u) {
		return time.Time{}
	}
	next := u.Truncate(time.Hour).Add(time.Hour)
	for i := 0; i < 24*8; i++ {
		if !IsOpen(market, next) {
			return next
		}
		next = next.Add(time.Hour)
	}
	return time.Time{}
}

// StatusString returns a human-readable market status.
func StatusString(market model.Market, t time.Time) string {
	if market != model.MarketForex {
		return "Market Open (24/7)"
	}
	if IsOpen(market, t) {
		return fmt.Sprintf("Market Open, closes in %s", fmtDur(NextClose(market, t).Sub(t)))
	}
	next := NextOpen(market, t)
	return fmt.Sprintf("Market Closed, opens %s %s UTC (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
