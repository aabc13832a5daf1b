package indicator

import (
	"math"

	"trading-signals/internal/model"
	"trading-signals/internal/rolling"
)

// RSI calculates the Relative Strength Index using simple averages of gains
// and losses over period (not Wilder's smoothing).
//
// The first element has no delta, so RSI is undefined for i < period. This
// is one bar later than pandas' delta.where(delta > 0, 0), which turns the
// missing first delta into a zero gain and loss and defines RSI from
// period-1; the two agree on every later bar.
// A window with losses of zero is 100 when it has gains and undefined when
// it is completely flat.
func RSI(closes model.Series, period int) model.Series {
	gain := make(model.Series, len(closes))
	loss := make(model.Series, len(closes))
	for i := 1; i < len(closes); i++ {
		if !closes[i].OK || !closes[i-1].OK {
			continue
		}
		delta := closes[i].V - closes[i-1].V
		g, l := 0.0, 0.0
		if delta > 0 {
			g = delta
		} else {
			l = -delta
		}
		gain[i] = model.Some(g)
		loss[i] = model.Some(l)
	}

	avgGain := rolling.SMA(gain, period)
	avgLoss := rolling.SMA(loss, period)

	return rolling.Combine(avgGain, avgLoss, rsiFromAverages)
}

func rsiFromAverages(avgGain, avgLoss float64) (float64, bool) {
	if math.IsNaN(avgGain) || math.IsInf(avgGain, 0) || math.IsNaN(avgLoss) || math.IsInf(avgLoss, 0) {
		return 0, false
	}
	if avgLoss == 0 {
		if avgGain > 0 {
			return 100, true
		}
		return 0, false
	}
	rs := avgGain / avgLoss
	v := 100.0 - (100.0 / (1.0 + rs))
	if math.IsNaN(v) {
		return 0, false
	}
	// Rounding can push a tiny loss average a hair outside the bounds.
	if v < 0 {
		v = 0
	} else if v > 100 {
		v = 100
	}
	return v, true
}
