package indicator

import (
	"trading-signals/internal/model"
	"trading-signals/internal/rolling"
)

// MACDResult holds the three MACD series.
type MACDResult struct {
	Line   model.Series
	Signal model.Series
	Hist   model.Series
}

// MACD computes line = EMA(fast) - EMA(slow), signal = EMA(line, signal)
// and hist = line - signal. EMAs start at the first close, so every series
// is defined wherever closes are.
func MACD(closes model.Series, fast, slow, signal int) MACDResult {
	line := rolling.Sub(rolling.EMA(closes, fast), rolling.EMA(closes, slow))
	sig := rolling.EMA(line, signal)
	return MACDResult{
		Line:   line,
		Signal: sig,
		Hist:   rolling.Sub(line, sig),
	}
}
