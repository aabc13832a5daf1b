// cmd/signalsrv serves the signal engine over HTTP and WebSocket and exposes
// Prometheus metrics. With SCAN_INTERVAL set it also rescans SYMBOLS
// periodically and streams every verdict.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-signals/config"
	"trading-signals/internal/api"
	"trading-signals/internal/engine"
	"trading-signals/internal/logger"
	"trading-signals/internal/metrics"
	"trading-signals/internal/model"
	"trading-signals/internal/notification"
	"trading-signals/internal/source"
	redisstore "trading-signals/internal/store/redis"
	"trading-signals/internal/tfbuilder"
)

func main() {
	cfg := config.Load()
	slogger := logger.Init("signalsrv", logger.ParseLevel(cfg.LogLevel))
	slogger.Info("starting", "source", cfg.Source, "http", cfg.HTTPAddr, "metrics", cfg.MetricsAddr)

	params, policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		log.Fatalf("[signalsrv] %v", err)
	}
	var tf time.Duration
	if cfg.Timeframe != "" {
		if tf, err = tfbuilder.ParseTimeframe(cfg.Timeframe); err != nil {
			log.Fatalf("[signalsrv] %v", err)
		}
	}
	symbols := cfg.ParseSymbols()
	if len(symbols) == 0 {
		log.Fatal("[signalsrv] no valid SYMBOLS configured")
	}

	opened, err := source.Open(cfg)
	if err != nil {
		log.Fatalf("[signalsrv] open %s source: %v", cfg.Source, err)
	}
	defer opened.Store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics + health
	m := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus(opened.Store.Name())
	if opened.Redis != nil {
		health.AddCheck("redis", metrics.RedisCheck(opened.Redis))
	}
	if opened.SQL != nil {
		health.AddCheck("sqlite", metrics.SQLCheck(opened.SQL))
	}
	health.StartLivenessChecker(ctx, 10*time.Second)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// Alerts
	notifiers := notification.Multi{notification.NewLogNotifier(slogger)}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL, notification.WithSecret(cfg.WebhookSecret)))
		slogger.Info("webhook alerts enabled")
	}

	// Verdict fan-out: WebSocket hub, plus Redis Pub/Sub when Redis is the source.
	hub := api.NewHub(m)
	publishers := engine.Publishers{hub}
	if opened.Redis != nil {
		publishers = append(publishers, redisstore.NewPublisher(opened.Redis))
	}

	svc := engine.NewService(engine.ServiceConfig{
		Engine:    engine.New(params, policy),
		Source:    opened.Store,
		Metrics:   m,
		Health:    health,
		Notifier:  notifiers,
		Publisher: publishers,
		Logger:    slogger,
		BarLimit:  cfg.BarLimit,
		Timeframe: tf,
	})

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Service:         svc,
			Hub:             hub,
			Health:          health,
			Symbols:         symbols,
			ScanConcurrency: cfg.ScanConcurrency,
			Logger:          slogger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slogger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[signalsrv] http server: %v", err)
		}
	}()

	if cfg.ScanInterval > 0 {
		go runScans(ctx, svc, symbols, cfg.ScanInterval, cfg.ScanConcurrency, slogger)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slogger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	slogger.Info("stopped")
}

// runScans evaluates every symbol once per interval until ctx is done.
func runScans(ctx context.Context, svc *engine.Service, symbols []model.Instrument, interval time.Duration, concurrency int, l *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		start := time.Now()
		results, err := svc.ScanAll(ctx, symbols, concurrency)
		if err != nil {
			return
		}
		failed := 0
		for _, r := range results {
			if r.Error != "" {
				failed++
			}
		}
		l.Info("periodic scan", "symbols", len(results), "failed", failed, "duration", time.Since(start))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
