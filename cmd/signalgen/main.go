// cmd/signalgen runs the signal engine once for a symbol from the configured
// bar source and prints the verdict.
//
// Usage:
//
//	go run ./cmd/signalgen --market=crypto --symbol=BTC
//	go run ./cmd/signalgen --symbol=EUR/USD --market=forex --json
//	go run ./cmd/signalgen --check
//	go run ./cmd/signalgen --symbol=BTC --import=data/btc.csv
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trading-signals/config"
	"trading-signals/internal/barfile"
	"trading-signals/internal/engine"
	"trading-signals/internal/logger"
	"trading-signals/internal/markethours"
	"trading-signals/internal/model"
	sig "trading-signals/internal/signal"
	"trading-signals/internal/source"
	"trading-signals/internal/tfbuilder"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	cfg := config.Load()

	// Flags
	market := flag.String("market", "crypto", "Market: forex or crypto")
	symbol := flag.String("symbol", "BTC", "Display symbol, e.g. BTC or EUR/USD")
	asJSON := flag.Bool("json", false, "Print the full report as JSON (bars, indicators, verdict)")
	check := flag.Bool("check", false, "Only check that the bar source returns data for the symbol")
	importPath := flag.String("import", "", "Load bars from a CSV/JSON/Parquet file into the source before running")
	flag.StringVar(&cfg.Source, "source", cfg.Source, "Bar source: file, sqlite or redis")
	flag.StringVar(&cfg.BarsDir, "bars-dir", cfg.BarsDir, "Directory of bar files (file source)")
	flag.StringVar(&cfg.PolicyFile, "policy", cfg.PolicyFile, "YAML file overriding indicator periods and policy")
	flag.IntVar(&cfg.BarLimit, "limit", cfg.BarLimit, "Most recent bars to evaluate (0=all)")
	flag.StringVar(&cfg.Timeframe, "timeframe", cfg.Timeframe, "Resample stored bars before evaluating, e.g. 1h, 4h, 1d")
	flag.Parse()

	// Logs go to stderr so -json output stays clean.
	log.SetOutput(os.Stderr)
	slogger := logger.InitWriter(os.Stderr, "signalgen", logger.ParseLevel(cfg.LogLevel))

	inst, err := model.ResolveSymbol(model.Market(*market), *symbol)
	if err != nil {
		log.Fatalf("[signalgen] %s:%s: %v", *market, *symbol, err)
	}

	params, policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		log.Fatalf("[signalgen] %v", err)
	}
	var tf time.Duration
	if cfg.Timeframe != "" {
		if tf, err = tfbuilder.ParseTimeframe(cfg.Timeframe); err != nil {
			log.Fatalf("[signalgen] %v", err)
		}
	}

	opened, err := source.Open(cfg)
	if err != nil {
		log.Fatalf("[signalgen] open %s source: %v", cfg.Source, err)
	}
	defer opened.Store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if *importPath != "" {
		if err := importBars(ctx, opened.Store, inst.Ticker, *importPath); err != nil {
			log.Fatalf("[signalgen] import: %v", err)
		}
	}

	svc := engine.NewService(engine.ServiceConfig{
		Engine:    engine.New(params, policy),
		Source:    opened.Store,
		Logger:    slogger,
		BarLimit:  cfg.BarLimit,
		Timeframe: tf,
	})

	if *check {
		n, err := svc.CheckSource(ctx, inst)
		if err != nil || n == 0 {
			fmt.Printf("✗ %s source: no data for %s (%s): %v\n", svc.SourceName(), inst.Symbol, inst.Ticker, err)
			os.Exit(1)
		}
		fmt.Printf("✓ %s source: %d bars for %s (%s)\n", svc.SourceName(), n, inst.Symbol, inst.Ticker)
		return
	}

	rep, err := svc.Evaluate(ctx, inst)
	switch {
	case errors.Is(err, engine.ErrNoResult):
		fmt.Printf("Insufficient data for %s: %v\n", inst.Symbol, err)
		os.Exit(2)
	case err != nil:
		log.Fatalf("[signalgen] %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatalf("[signalgen] encode: %v", err)
		}
		return
	}
	printReport(rep)
}

func importBars(ctx context.Context, w model.BarWriter, ticker, path string) error {
	bars, err := barfile.ReadFile(path)
	if err != nil {
		return err
	}
	if err := model.ValidateBars(bars); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := w.WriteBars(ctx, ticker, bars); err != nil {
		return err
	}
	log.Printf("[signalgen] imported %d bars for %s from %s", len(bars), ticker, path)
	return nil
}

func printReport(rep *engine.Report) {
	res := rep.Result
	q := res.Quote
	v := res.Verdict

	fmt.Println()
	fmt.Printf("%s  %s\n", titleStyle.Render(rep.Instrument.Symbol+" ("+rep.Instrument.Ticker+")"), q.Time.Format(time.RFC3339))
	fmt.Println(strings.Repeat("─", 48))
	fmt.Printf("  Session:    %s\n", markethours.StatusString(rep.Instrument.Market, time.Now()))
	fmt.Printf("  Price:      %.5f\n", q.Price)
	fmt.Printf("  Change:     %+.5f (%+.2f%%)\n", q.Change, q.ChangePct)
	if q.RSI.OK {
		fmt.Printf("  RSI:        %.2f\n", q.RSI.V)
	} else {
		fmt.Printf("  RSI:        n/a\n")
	}
	fmt.Println()

	fmt.Printf("  Overall:    %s\n", directionStyle(v.Overall).Render(string(v.Overall)))
	fmt.Printf("  Buy:        %.2f\n", v.BuyStrength)
	fmt.Printf("  Sell:       %.2f\n", v.SellStrength)
	if len(v.Signals) == 0 {
		fmt.Println("  No indicator signals")
	}
	for _, s := range v.Signals {
		fmt.Printf("  %s %s\n", directionStyle(s.Direction).Render("•"), s)
	}
	fmt.Println()

	printGuidance(res.Guidance)
}

func printGuidance(g sig.Guidance) {
	fmt.Printf("  Guidance:   %s\n", g.Action)
	for _, line := range []struct{ label, text string }{
		{"Entry", g.Entry},
		{"Stop loss", g.StopLoss},
		{"Take profit", g.TakeProfit},
		{"Position", g.PositionSize},
		{"Note", g.Note},
	} {
		if line.text != "" {
			fmt.Printf("  %s %s\n", labelStyle.Render(fmt.Sprintf("%-11s", line.label+":")), line.text)
		}
	}
}
