package signal

import (
	"trading-signals/internal/indicator"
)

// Evaluate runs every rule against the bundle and returns the fired
// signals in rule order (RSI, MACD, BB). A rule with undefined inputs is
// skipped without affecting the others.
func Evaluate(b *indicator.Bundle, p Policy) []Signal {
	var out []Signal
	for _, rule := range [...]func(*indicator.Bundle, Policy) (Signal, bool){
		RSIRule,
		MACDRule,
		BollingerRule,
	} {
		if s, ok := rule(b, p); ok {
			out = append(out, s)
		}
	}
	return out
}

// RSIRule fires BUY below the oversold level and SELL above the overbought level.
func RSIRule(b *indicator.Bundle, p Policy) (Signal, bool) {
	rsi := b.RSI.Last()
	if !rsi.OK {
		return Signal{}, false
	}
	switch {
	case rsi.V < p.RSIOversold:
		return Signal{Indicator: NameRSI, Direction: Buy, Reason: "Oversold", Strength: p.RSIStrength}, true
	case rsi.V > p.RSIOverbought:
		return Signal{Indicator: NameRSI, Direction: Sell, Reason: "Overbought", Strength: p.RSIStrength}, true
	}
	return Signal{}, false
}

// MACDRule fires on a crossover of the MACD line and its signal line
// between the last two bars. Only that pair is compared.
func MACDRule(b *indicator.Bundle, p Policy) (Signal, bool) {
	macd, sig := b.MACD.Last(), b.MACDSignal.Last()
	prevMACD, prevSig := b.MACD.Prev(), b.MACDSignal.Prev()
	if !macd.OK || !sig.OK || !prevMACD.OK || !prevSig.OK {
		return Signal{}, false
	}

	switch {
	case macd.V > sig.V && prevMACD.V <= prevSig.V:
		return Signal{Indicator: NameMACD, Direction: Buy, Reason: "Bullish Crossover", Strength: p.MACDStrength}, true
	case macd.V < sig.V && prevMACD.V >= prevSig.V:
		return Signal{Indicator: NameMACD, Direction: Sell, Reason: "Bearish Crossover", Strength: p.MACDStrength}, true
	}
	return Signal{}, false
}

// BollingerRule fires BUY when the close is under the lower band and SELL
// when it is over the upper band.
func BollingerRule(b *indicator.Bundle, p Policy) (Signal, bool) {
	px, lower, upper := b.Close.Last(), b.BBLower.Last(), b.BBUpper.Last()
	if !px.OK || !lower.OK || !upper.OK {
		return Signal{}, false
	}
	switch {
	case px.V < lower.V:
		return Signal{Indicator: NameBollinger, Direction: Buy, Reason: "Below Lower Band", Strength: p.BBStrength}, true
	case px.V > upper.V:
		return Signal{Indicator: NameBollinger, Direction: Sell, Reason: "Above Upper Band", Strength: p.BBStrength}, true
	}
	return Signal{}, false
}
