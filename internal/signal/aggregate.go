package signal

// Verdict is the fused recommendation of one run.
type Verdict struct {
	Overall      Direction `json:"overall"`
	BuyStrength  float64   `json:"buy_strength"`
	SellStrength float64   `json:"sell_strength"`
	Signals      []Signal  `json:"signals"`
}

// Aggregate averages the strengths per side and picks the overall
// direction. A side wins only when it is strictly stronger than the other
// and strictly above the verdict threshold; everything else is NEUTRAL.
func Aggregate(signals []Signal, p Policy) Verdict {
	var buySum, sellSum float64
	var buyN, sellN int
	for _, s := range signals {
		switch s.Direction {
		case Buy:
			buySum += s.Strength
			buyN++
		case Sell:
			sellSum += s.Strength
			sellN++
		}
	}

	v := Verdict{Overall: Neutral, Signals: make([]Signal, len(signals))}
	copy(v.Signals, signals)
	if buyN > 0 {
		v.BuyStrength = buySum / float64(buyN)
	}
	if sellN > 0 {
		v.SellStrength = sellSum / float64(sellN)
	}

	switch {
	case v.BuyStrength > v.SellStrength && v.BuyStrength > p.VerdictThreshold:
		v.Overall = Buy
	case v.SellStrength > v.BuyStrength && v.SellStrength > p.VerdictThreshold:
		v.Overall = Sell
	}
	return v
}

// Guidance is the risk-management advice attached to a verdict.
type Guidance struct {
	Action       Direction `json:"action"`
	Entry        string    `json:"entry,omitempty"`
	StopLoss     string    `json:"stop_loss,omitempty"`
	TakeProfit   string    `json:"take_profit,omitempty"`
	PositionSize string    `json:"position_size,omitempty"`
	Note         string    `json:"note,omitempty"`
}

// GuidanceFor returns the standing advice for an overall direction.
func GuidanceFor(overall Direction) Guidance {
	if overall != Buy && overall != Sell {
		return Guidance{
			Action: Neutral,
			Note:   "Mixed signals detected. Consider waiting for clearer market direction.",
		}
	}
	return Guidance{
		Action:       overall,
		Entry:        "Wait for confirmation on next candle",
		StopLoss:     "Set 1-2% below/above entry point",
		TakeProfit:   "Target 2-3% gain for favorable risk/reward ratio",
		PositionSize: "Risk no more than 1-2% of portfolio",
	}
}
