package indicator

import (
	"trading-signals/internal/model"
	"trading-signals/internal/rolling"
)

// Bands holds Bollinger Band series.
type Bands struct {
	Upper  model.Series
	Middle model.Series
	Lower  model.Series
}

// BollingerBands computes middle = SMA(period) and upper/lower at
// numStd sample standard deviations from it. Lower ≤ Middle ≤ Upper holds
// wherever the bands are defined.
func BollingerBands(closes model.Series, period int, numStd float64) Bands {
	middle := rolling.SMA(closes, period)
	std := rolling.StdDev(closes, period)

	upper := rolling.Combine(middle, std, func(m, s float64) (float64, bool) { return m + numStd*s, true })
	lower := rolling.Combine(middle, std, func(m, s float64) (float64, bool) { return m - numStd*s, true })

	return Bands{Upper: upper, Middle: middle, Lower: lower}
}
