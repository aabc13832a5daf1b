// Package signal turns an indicator bundle into directional signals and
// fuses them into one verdict.
//
// The rule set is closed: RSI, MACD crossover and Bollinger Band rules are
// plain functions over a bundle snapshot. Each reads only the latest values
// (the MACD rule also the second-latest) and emits at most one Signal.
package signal

import (
	"errors"
	"fmt"
)

// Direction is the side of a signal or verdict.
type Direction string

const (
	Buy     Direction = "BUY"
	Sell    Direction = "SELL"
	Neutral Direction = "NEUTRAL" // verdicts only
)

// Indicator names as they appear on signals.
const (
	NameRSI       = "RSI"
	NameMACD      = "MACD"
	NameBollinger = "BB"
)

// Signal is one rule's directional opinion for the latest bar.
// Strength is the rule's fixed confidence weight.
type Signal struct {
	Indicator string    `json:"indicator"`
	Direction Direction `json:"direction"`
	Reason    string    `json:"reason"`
	Strength  float64   `json:"strength"`
}

func (s Signal) String() string {
	return fmt.Sprintf("%s: %s - %s (strength %.1f)", s.Indicator, s.Direction, s.Reason, s.Strength)
}

// Policy holds the decision constants for rules and aggregation.
type Policy struct {
	MinBars          int     `yaml:"min_bars" json:"min_bars"`
	RSIOversold      float64 `yaml:"rsi_oversold" json:"rsi_oversold"`
	RSIOverbought    float64 `yaml:"rsi_overbought" json:"rsi_overbought"`
	RSIStrength      float64 `yaml:"rsi_strength" json:"rsi_strength"`
	MACDStrength     float64 `yaml:"macd_strength" json:"macd_strength"`
	BBStrength       float64 `yaml:"bb_strength" json:"bb_strength"`
	VerdictThreshold float64 `yaml:"verdict_threshold" json:"verdict_threshold"`
}

// DefaultPolicy returns the stock calibration: 20 bars minimum, RSI 30/70,
// strengths 0.7 (RSI), 0.8 (MACD), 0.6 (BB) and a 0.6 verdict threshold.
func DefaultPolicy() Policy {
	return Policy{
		MinBars:          20,
		RSIOversold:      30,
		RSIOverbought:    70,
		RSIStrength:      0.7,
		MACDStrength:     0.8,
		BBStrength:       0.6,
		VerdictThreshold: 0.6,
	}
}

// Validate reports the first inconsistent constant.
func (p Policy) Validate() error {
	if p.MinBars < 2 {
		return fmt.Errorf("min_bars %d: need at least 2 bars for crossover detection", p.MinBars)
	}
	if p.RSIOversold < 0 || p.RSIOverbought > 100 || p.RSIOversold >= p.RSIOverbought {
		return fmt.Errorf("rsi thresholds %.2f/%.2f: want 0 ≤ oversold < overbought ≤ 100", p.RSIOversold, p.RSIOverbought)
	}
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"rsi_strength", p.RSIStrength},
		{"macd_strength", p.MACDStrength},
		{"bb_strength", p.BBStrength},
		{"verdict_threshold", p.VerdictThreshold},
	} {
		if c.v < 0 || c.v > 1 {
			return fmt.Errorf("%s %.2f: %w", c.name, c.v, errOutOfUnitRange)
		}
	}
	return nil
}

var errOutOfUnitRange = errors.New("must be within [0,1]")
