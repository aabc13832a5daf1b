// Package notification delivers verdict alerts to external channels
// (webhooks, logs) when a run ends in a directional recommendation.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"trading-signals/internal/signal"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo    AlertLevel = "INFO"
	AlertWarning AlertLevel = "WARNING"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Symbol  string     `json:"symbol,omitempty"`
	Overall string     `json:"overall,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// VerdictAlert builds the alert for a directional verdict. ok is false for
// NEUTRAL verdicts, which are not announced.
func VerdictAlert(symbol string, v signal.Verdict) (Alert, bool) {
	if v.Overall != signal.Buy && v.Overall != signal.Sell {
		return Alert{}, false
	}
	lines := make([]string, 0, len(v.Signals)+1)
	lines = append(lines, fmt.Sprintf("buy strength %.2f, sell strength %.2f", v.BuyStrength, v.SellStrength))
	for _, s := range v.Signals {
		lines = append(lines, s.String())
	}
	return Alert{
		Level:   AlertInfo,
		Title:   fmt.Sprintf("%s %s", symbol, v.Overall),
		Message: strings.Join(lines, "\n"),
		Symbol:  symbol,
		Overall: string(v.Overall),
	}, true
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier. A nil logger uses slog.Default().
func NewLogNotifier(l *slog.Logger) *LogNotifier {
	if l == nil {
		l = slog.Default()
	}
	return &LogNotifier{log: l}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	n.log.InfoContext(ctx, "alert",
		"level", alert.Level,
		"title", alert.Title,
		"symbol", alert.Symbol,
		"overall", alert.Overall,
	)
	return nil
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
