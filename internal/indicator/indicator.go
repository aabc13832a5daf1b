// Package indicator computes the technical indicator set over a bar series.
//
// All indicators run over the full series in one batch pass and return
// Series aligned to the input bars. Nothing is retained between calls.
package indicator

import (
	"fmt"

	"trading-signals/internal/model"
	"trading-signals/internal/rolling"
)

// Params holds the lookback configuration for every indicator in a Bundle.
type Params struct {
	RSIPeriod  int     `yaml:"rsi_period" json:"rsi_period"`
	MACDFast   int     `yaml:"macd_fast" json:"macd_fast"`
	MACDSlow   int     `yaml:"macd_slow" json:"macd_slow"`
	MACDSignal int     `yaml:"macd_signal" json:"macd_signal"`
	BBPeriod   int     `yaml:"bb_period" json:"bb_period"`
	BBNumStd   float64 `yaml:"bb_num_std" json:"bb_num_std"`
	SMAFast    int     `yaml:"sma_fast" json:"sma_fast"`
	SMASlow    int     `yaml:"sma_slow" json:"sma_slow"`
}

// DefaultParams returns RSI(14), MACD(12,26,9), Bollinger(20,2), SMA(20), SMA(50).
func DefaultParams() Params {
	return Params{
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		BBPeriod:   20,
		BBNumStd:   2,
		SMAFast:    20,
		SMASlow:    50,
	}
}

// Validate rejects non-positive periods, a fast MACD span that is not
// shorter than the slow one and a negative band width.
func (p Params) Validate() error {
	for _, c := range []struct {
		name string
		v    int
	}{
		{"rsi_period", p.RSIPeriod},
		{"macd_fast", p.MACDFast},
		{"macd_slow", p.MACDSlow},
		{"macd_signal", p.MACDSignal},
		{"bb_period", p.BBPeriod},
		{"sma_fast", p.SMAFast},
		{"sma_slow", p.SMASlow},
	} {
		if c.v < 1 {
			return fmt.Errorf("%s %d: must be positive", c.name, c.v)
		}
	}
	if p.MACDFast >= p.MACDSlow {
		return fmt.Errorf("macd spans %d/%d: fast must be shorter than slow", p.MACDFast, p.MACDSlow)
	}
	if p.BBNumStd < 0 {
		return fmt.Errorf("bb_num_std %.2f: must not be negative", p.BBNumStd)
	}
	return nil
}

// Bundle is one bar-aligned set of indicator series, owned by a single run.
type Bundle struct {
	Close      model.Series `json:"close"`
	RSI        model.Series `json:"rsi"`
	MACD       model.Series `json:"macd"`
	MACDSignal model.Series `json:"macd_signal"`
	MACDHist   model.Series `json:"macd_hist"`
	BBUpper    model.Series `json:"bb_upper"`
	BBMiddle   model.Series `json:"bb_middle"`
	BBLower    model.Series `json:"bb_lower"`
	SMA20      model.Series `json:"sma_20"`
	SMA50      model.Series `json:"sma_50"`
}

// Len returns the number of bars the bundle is aligned to.
func (b *Bundle) Len() int { return len(b.Close) }

// Compute builds the full indicator bundle for bars.
func Compute(bars []model.Bar, p Params) *Bundle {
	closes := model.Closes(bars)

	macd := MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	bb := BollingerBands(closes, p.BBPeriod, p.BBNumStd)

	return &Bundle{
		Close:      closes,
		RSI:        RSI(closes, p.RSIPeriod),
		MACD:       macd.Line,
		MACDSignal: macd.Signal,
		MACDHist:   macd.Hist,
		BBUpper:    bb.Upper,
		BBMiddle:   bb.Middle,
		BBLower:    bb.Lower,
		SMA20:      rolling.SMA(closes, p.SMAFast),
		SMA50:      rolling.SMA(closes, p.SMASlow),
	}
}
