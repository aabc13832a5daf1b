package engine

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"trading-signals/internal/model"
)

// DefaultScanConcurrency bounds parallel evaluations when the caller passes 0.
const DefaultScanConcurrency = 4

// ScanResult is the outcome for one instrument of a scan. Exactly one of
// Report and Error is set; NoResult marks insufficient history.
type ScanResult struct {
	Instrument model.Instrument `json:"instrument"`
	Report     *Report          `json:"report,omitempty"`
	NoResult   bool             `json:"no_result,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// ScanAll evaluates every instrument with at most concurrency runs in flight.
// Per-instrument failures are recorded in the results, which keep the input
// order. Only cancellation of ctx fails the scan as a whole.
func (s *Service) ScanAll(ctx context.Context, insts []model.Instrument, concurrency int) ([]ScanResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultScanConcurrency
	}
	results := make([]ScanResult, len(insts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, inst := range insts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := s.Evaluate(gctx, inst)
			results[i] = ScanResult{Instrument: inst, Report: rep}
			switch {
			case err == nil:
			case errors.Is(err, ErrNoResult):
				results[i].NoResult = true
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
