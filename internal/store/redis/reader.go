package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"trading-signals/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

func (c *Cache) Name() string { return "redis" }

// Bars reads bars for q.Ticker oldest first. Time bounds become score
// bounds and Limit keeps the newest bars.
func (c *Cache) Bars(ctx context.Context, q model.BarQuery) ([]model.Bar, error) {
	by := &goredis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !q.From.IsZero() {
		by.Min = strconv.FormatInt(q.From.Unix(), 10)
	}
	if !q.To.IsZero() {
		by.Max = strconv.FormatInt(q.To.Unix(), 10)
	}
	if q.Limit > 0 {
		by.Count = int64(q.Limit)
	}
	key := barsKey(q.Ticker)

	var members []string
	err := c.breaker.Do(func() error {
		// Newest first so Count keeps the most recent bars; reversed below.
		res, err := c.client.ZRevRangeByScore(ctx, key, by).Result()
		if err != nil {
			return fmt.Errorf("redis ZREVRANGEBYSCORE %s: %w", key, err)
		}
		members = res
		if len(res) > 0 {
			return nil
		}
		n, err := c.client.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("redis EXISTS %s: %w", key, err)
		}
		if n == 0 {
			members = nil
			return errUnknown
		}
		return nil
	})
	if errors.Is(err, errUnknown) {
		return nil, fmt.Errorf("redis: %s: %w", q.Ticker, model.ErrUnknownSymbol)
	}
	if err != nil {
		return nil, err
	}

	bars := make([]model.Bar, 0, len(members))
	for _, m := range members {
		b, err := decodeMember(m)
		if err != nil {
			return nil, fmt.Errorf("redis %s: %w", key, err)
		}
		bars = append(bars, b)
	}
	slices.Reverse(bars)
	return bars, nil
}

// errUnknown marks a missing key inside the breaker without counting as a failure.
var errUnknown = fmt.Errorf("no bars: %w", goredis.Nil)

// Tickers lists every ticker written through this cache.
func (c *Cache) Tickers(ctx context.Context) ([]string, error) {
	var out []string
	err := c.breaker.Do(func() error {
		res, err := c.client.SMembers(ctx, keyTickers).Result()
		if err != nil {
			return fmt.Errorf("redis SMEMBERS %s: %w", keyTickers, err)
		}
		out = res
		return nil
	})
	slices.Sort(out)
	return out, err
}

func decodeMember(s string) (model.Bar, error) {
	ts, raw, ok := strings.Cut(s, ":")
	if !ok {
		return model.Bar{}, fmt.Errorf("malformed member %q", s)
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return model.Bar{}, fmt.Errorf("member timestamp %q: %w", ts, err)
	}
	var m member
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return model.Bar{}, fmt.Errorf("member payload: %w", err)
	}
	return model.Bar{Time: time.Unix(sec, 0).UTC(), Open: m.O, High: m.H, Low: m.L, Close: m.C}, nil
}
