package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trading-signals/internal/logger"
	"trading-signals/internal/metrics"
	"trading-signals/internal/model"
	"trading-signals/internal/notification"
	"trading-signals/internal/tfbuilder"
)

// ErrNoResult reports a run that ended without a verdict because the series
// was empty or shorter than the minimum history.
var ErrNoResult = errors.New("insufficient history")

// Report is a Result tagged with the instrument and run identity.
type Report struct {
	RunID       string           `json:"run_id"`
	Instrument  model.Instrument `json:"instrument"`
	GeneratedAt time.Time        `json:"generated_at"`
	Result      *Result          `json:"result"`
}

// Publisher receives every report the service produces (e.g. a WebSocket hub).
type Publisher interface {
	Publish(r *Report)
}

// Publishers fans a report out to several publishers in order.
type Publishers []Publisher

func (ps Publishers) Publish(r *Report) {
	for _, p := range ps {
		p.Publish(r)
	}
}

// ServiceConfig wires a Service. Only Engine and Source are required.
type ServiceConfig struct {
	Engine    *Engine
	Source    model.BarSource
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
	Notifier  notification.Notifier
	Publisher Publisher
	Logger    *slog.Logger

	// BarLimit caps how many of the most recent bars a run evaluates (0 = all).
	// With a Timeframe it counts resampled bars.
	BarLimit int
	// Timeframe resamples fetched bars into coarser buckets before the run (0 = as stored).
	Timeframe time.Duration
}

// Service fetches bars from a source, runs the engine and fans the outcome
// out to metrics, logs, notifiers and publishers.
type Service struct {
	cfg ServiceConfig
	log *slog.Logger
	now func() time.Time
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	l := cfg.Logger
	if l == nil {
		l = slog.Default()
	}
	if cfg.Engine == nil {
		cfg.Engine = Default()
	}
	return &Service{cfg: cfg, log: l, now: time.Now}
}

// SourceName returns the name of the configured bar source.
func (s *Service) SourceName() string { return s.cfg.Source.Name() }

// Evaluate runs one engine pass for inst over the latest bars.
// Returns ErrNoResult (wrapped) when history is insufficient and a wrapped
// model.ErrMalformedInput when the source delivered invalid bars.
func (s *Service) Evaluate(ctx context.Context, inst model.Instrument) (*Report, error) {
	started := s.now()
	runID := logger.GenerateRunID(inst.Ticker, started)
	ctx = logger.WithRunID(ctx, runID)

	// The limit applies after resampling, so fetch the full stored history then.
	fetchLimit := s.cfg.BarLimit
	if s.cfg.Timeframe > 0 {
		fetchLimit = 0
	}
	bars, err := s.fetch(ctx, inst, fetchLimit)
	if err != nil {
		s.countRun(metrics.OutcomeSourceErr)
		return nil, err
	}
	bars = s.resample(bars)

	computeStart := time.Now()
	res, err := s.cfg.Engine.Run(bars)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RunDur.Observe(time.Since(computeStart).Seconds())
		s.cfg.Metrics.BarsPerRun.Observe(float64(len(bars)))
	}
	if s.cfg.Health != nil {
		s.cfg.Health.SetLastRun(started)
	}

	attrs := append(logger.LogWithRun(ctx), "ticker", inst.Ticker, "bars", len(bars))
	switch {
	case err != nil:
		s.countRun(metrics.OutcomeMalformed)
		s.log.WarnContext(ctx, "malformed bars", append(attrs, "err", err)...)
		return nil, fmt.Errorf("%s: %w", inst.Ticker, err)
	case res == nil:
		s.countRun(metrics.OutcomeNoResult)
		s.log.InfoContext(ctx, "no result", attrs...)
		return nil, fmt.Errorf("%s: %d bars, need %d: %w", inst.Ticker, len(bars), s.cfg.Engine.Policy().MinBars, ErrNoResult)
	}

	s.countRun(metrics.OutcomeVerdict)
	s.observeVerdict(res)
	s.log.InfoContext(ctx, "verdict", append(attrs,
		"overall", res.Verdict.Overall,
		"buy_strength", res.Verdict.BuyStrength,
		"sell_strength", res.Verdict.SellStrength,
		"signals", len(res.Verdict.Signals),
		"duration", time.Since(started),
	)...)

	rep := &Report{RunID: runID, Instrument: inst, GeneratedAt: started.UTC(), Result: res}
	if s.cfg.Publisher != nil {
		s.cfg.Publisher.Publish(rep)
	}
	s.notify(ctx, inst, res)
	return rep, nil
}

// CheckSource queries the bar source for inst and returns how many bars it holds.
func (s *Service) CheckSource(ctx context.Context, inst model.Instrument) (int, error) {
	bars, err := s.fetch(ctx, inst, s.cfg.BarLimit)
	if err != nil {
		return 0, err
	}
	return len(bars), nil
}

func (s *Service) fetch(ctx context.Context, inst model.Instrument, limit int) ([]model.Bar, error) {
	start := time.Now()
	bars, err := s.cfg.Source.Bars(ctx, model.BarQuery{Ticker: inst.Ticker, Limit: limit})
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SourceFetchDur.WithLabelValues(s.cfg.Source.Name()).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		// An unknown ticker says nothing about the health of the source.
		if s.cfg.Health != nil && !errors.Is(err, model.ErrUnknownSymbol) {
			s.cfg.Health.SetSourceOK(false)
		}
		return nil, fmt.Errorf("fetch %s from %s: %w", inst.Ticker, s.cfg.Source.Name(), err)
	}
	if s.cfg.Health != nil {
		s.cfg.Health.SetSourceOK(true)
	}
	return bars, nil
}

// resample leaves malformed input untouched so the engine still rejects it.
func (s *Service) resample(bars []model.Bar) []model.Bar {
	if s.cfg.Timeframe <= 0 || model.ValidateBars(bars) != nil {
		return bars
	}
	return model.BarQuery{Limit: s.cfg.BarLimit}.Window(tfbuilder.Resample(bars, s.cfg.Timeframe))
}

func (s *Service) notify(ctx context.Context, inst model.Instrument, res *Result) {
	if s.cfg.Notifier == nil {
		return
	}
	alert, ok := notification.VerdictAlert(inst.Symbol, res.Verdict)
	if !ok {
		return
	}
	result := "sent"
	if err := s.cfg.Notifier.Send(ctx, alert); err != nil {
		result = "failed"
		s.log.WarnContext(ctx, "alert delivery failed", append(logger.LogWithRun(ctx), "err", err)...)
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.AlertsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) countRun(outcome string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RunsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) observeVerdict(res *Result) {
	if s.cfg.Metrics == nil {
		return
	}
	s.cfg.Metrics.VerdictsTotal.WithLabelValues(string(res.Verdict.Overall)).Inc()
	for _, sig := range res.Verdict.Signals {
		s.cfg.Metrics.SignalsFired.WithLabelValues(sig.Indicator, string(sig.Direction)).Inc()
	}
}
