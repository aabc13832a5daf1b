package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"trading-signals/internal/indicator"
	"trading-signals/internal/model"
	"trading-signals/internal/signal"
)

// Bar sources selectable through SOURCE.
const (
	SourceFile   = "file"
	SourceSQLite = "sqlite"
	SourceRedis  = "redis"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Bar source
	Source  string
	BarsDir string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	HTTPAddr      string
	MetricsAddr   string

	// Instruments (comma-separated "market:symbol", e.g. "crypto:BTC,forex:EUR/USD")
	Symbols string

	// Optional YAML file overriding indicator periods and the decision policy
	PolicyFile string

	// Alerts
	WebhookURL    string
	WebhookSecret string // HMAC-SHA256 key for the signature header; empty disables signing

	ScanConcurrency int
	ScanInterval    time.Duration // periodic scan of Symbols; 0 disables
	BarLimit        int
	Timeframe       string // resample stored bars before a run, e.g. "4h"; empty keeps them as stored
	LogLevel        string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Source:  strings.ToLower(getEnv("SOURCE", SourceFile)),
		BarsDir: getEnv("BARS_DIR", "data/bars"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/bars.db"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		// Default: the majors plus the large caps
		Symbols: getEnv("SYMBOLS", "forex:EUR/USD,forex:GBP/USD,forex:USD/JPY,crypto:BTC,crypto:ETH"),

		PolicyFile:    getEnv("POLICY_FILE", ""),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		ScanConcurrency: getEnvInt("SCAN_CONCURRENCY", 4),
		ScanInterval:    getEnvDuration("SCAN_INTERVAL", 0),
		BarLimit:        getEnvInt("BAR_LIMIT", 500),
		Timeframe:       getEnv("TIMEFRAME", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// ParseSymbols resolves the Symbols list into instruments, skipping entries
// with an unknown market or no symbol.
func (c *Config) ParseSymbols() []model.Instrument {
	parts := strings.Split(c.Symbols, ",")
	out := make([]model.Instrument, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		market, symbol, ok := strings.Cut(p, ":")
		if !ok || strings.TrimSpace(symbol) == "" {
			log.Printf("[config] skipping invalid symbol entry: %q", p)
			continue
		}
		inst, err := model.ResolveSymbol(model.Market(strings.TrimSpace(market)), symbol)
		if err != nil {
			log.Printf("[config] skipping %q: %v", p, err)
			continue
		}
		out = append(out, inst)
	}
	return out
}

// PolicyFile is the YAML layout of POLICY_FILE. Omitted keys keep their defaults.
type PolicyFile struct {
	Indicators indicator.Params `yaml:"indicators"`
	Policy     signal.Policy    `yaml:"policy"`
}

// LoadPolicy returns the default indicator periods and policy overlaid with
// the YAML file at path. An empty path returns the defaults.
func LoadPolicy(path string) (indicator.Params, signal.Policy, error) {
	pf := PolicyFile{
		Indicators: indicator.DefaultParams(),
		Policy:     signal.DefaultPolicy(),
	}
	if path == "" {
		return pf.Indicators, pf.Policy, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return indicator.Params{}, signal.Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.UnmarshalStrict(raw, &pf); err != nil {
		return indicator.Params{}, signal.Policy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := pf.Indicators.Validate(); err != nil {
		return indicator.Params{}, signal.Policy{}, fmt.Errorf("policy file %s: indicators: %w", path, err)
	}
	if err := pf.Policy.Validate(); err != nil {
		return indicator.Params{}, signal.Policy{}, fmt.Errorf("policy file %s: policy: %w", path, err)
	}
	return pf.Indicators, pf.Policy, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
