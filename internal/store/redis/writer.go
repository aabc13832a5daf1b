package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"trading-signals/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	keyTickers         = "bars:tickers"
	defaultMaxBars     = 5000
	defaultMaxFailures = 5
	defaultCooldown    = 10 * time.Second
)

// Config configures the Redis bar cache.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	// MaxBars caps each ticker's sorted set; older bars are trimmed on write.
	MaxBars int
}

// Cache keeps bars per ticker in a sorted set "bars:<ticker>" scored by Unix
// seconds. It implements model.BarSource and model.BarWriter.
type Cache struct {
	client  *goredis.Client
	breaker *Breaker
	maxBars int
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// New creates a Redis bar cache and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return newCache(client, cfg.MaxBars), nil
}

func newCache(client *goredis.Client, maxBars int) *Cache {
	if maxBars <= 0 {
		maxBars = defaultMaxBars
	}
	b := NewBreaker(defaultMaxFailures, defaultCooldown)
	b.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}
	return &Cache{client: client, breaker: b, maxBars: maxBars}
}

func barsKey(ticker string) string { return "bars:" + ticker }

// member is the sorted-set payload. The timestamp lives in the score.
type member struct {
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
}

func encodeMember(b model.Bar) string {
	raw, _ := json.Marshal(member{O: b.Open, H: b.High, L: b.Low, C: b.Close})
	// Prefix the timestamp so bars with equal prices stay distinct members.
	return strconv.FormatInt(b.Time.Unix(), 10) + ":" + string(raw)
}

// WriteBars upserts bars in one pipeline: each timestamp's old member is
// removed before the new one is added, then the set is trimmed to MaxBars.
func (c *Cache) WriteBars(ctx context.Context, ticker string, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	key := barsKey(ticker)
	return c.breaker.Do(func() error {
		pipe := c.client.TxPipeline()
		for _, b := range bars {
			score := strconv.FormatInt(b.Time.Unix(), 10)
			pipe.ZRemRangeByScore(ctx, key, score, score)
			pipe.ZAdd(ctx, key, &goredis.Z{Score: float64(b.Time.Unix()), Member: encodeMember(b)})
		}
		pipe.ZRemRangeByRank(ctx, key, 0, int64(-c.maxBars-1))
		pipe.SAdd(ctx, keyTickers, ticker)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis write %s: %w", ticker, err)
		}
		return nil
	})
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
