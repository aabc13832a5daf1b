// Package engine runs the indicator and signal fusion pipeline over one
// bar series: bars → indicators → rules → verdict.
//
// Engine is pure and synchronous. It holds only immutable configuration, so
// one Engine may be shared by any number of goroutines, each passing its own
// bars and receiving its own Result.
package engine

import (
	"fmt"
	"time"

	"trading-signals/internal/indicator"
	"trading-signals/internal/model"
	"trading-signals/internal/signal"
)

// Quote summarises the latest bar for display.
type Quote struct {
	Time      time.Time   `json:"time"`
	Price     float64     `json:"price"`
	Change    float64     `json:"change"`
	ChangePct float64     `json:"change_pct"`
	RSI       model.Value `json:"rsi"`
}

// Result is the output of one successful run. Immutable once returned.
type Result struct {
	Verdict    signal.Verdict    `json:"verdict"`
	Guidance   signal.Guidance   `json:"guidance"`
	Quote      Quote             `json:"quote"`
	Bars       []model.Bar       `json:"bars"`
	Indicators *indicator.Bundle `json:"indicators"`
}

// Engine holds the indicator parameters and decision policy for runs.
type Engine struct {
	params indicator.Params
	policy signal.Policy
}

// New creates an engine with the given configuration.
func New(params indicator.Params, policy signal.Policy) *Engine {
	return &Engine{params: params, policy: policy}
}

// Default creates an engine with the stock indicator periods and policy.
func Default() *Engine {
	return New(indicator.DefaultParams(), signal.DefaultPolicy())
}

// Policy returns the decision policy in use.
func (e *Engine) Policy() signal.Policy { return e.policy }

// Run validates bars and produces a Result.
//
// It returns nil, nil when there is not enough history (fewer than
// Policy.MinBars bars, including an empty series) and a wrapped
// model.ErrMalformedInput when the bars break ordering or price invariants.
func (e *Engine) Run(bars []model.Bar) (*Result, error) {
	if err := model.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if len(bars) < e.policy.MinBars || len(bars) == 0 {
		return nil, nil
	}

	own := make([]model.Bar, len(bars))
	copy(own, bars)

	ind := indicator.Compute(own, e.params)
	verdict := signal.Aggregate(signal.Evaluate(ind, e.policy), e.policy)

	return &Result{
		Verdict:    verdict,
		Guidance:   signal.GuidanceFor(verdict.Overall),
		Quote:      quoteOf(own, ind),
		Bars:       own,
		Indicators: ind,
	}, nil
}

func quoteOf(bars []model.Bar, ind *indicator.Bundle) Quote {
	last := bars[len(bars)-1]
	q := Quote{Time: last.Time, Price: last.Close, RSI: ind.RSI.Last()}
	if len(bars) > 1 {
		prev := bars[len(bars)-2].Close
		q.Change = last.Close - prev
		q.ChangePct = q.Change / prev * 100
	}
	return q
}
