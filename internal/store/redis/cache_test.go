package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-signals/internal/engine"
	"trading-signals/internal/model"
)

func testBars(n int) []model.Bar {
	t0 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Bar, n)
	for i := range out {
		c := 42000 + float64(i)*10
		out[i] = model.Bar{Time: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c + 50, Low: c - 50, Close: c}
	}
	return out
}

func TestMemberCodec(t *testing.T) {
	b := testBars(1)[0]
	got, err := decodeMember(encodeMember(b))
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = decodeMember("no-separator")
	assert.Error(t, err)
	_, err = decodeMember("abc:{}")
	assert.Error(t, err)
}

// liveCache connects to REDIS_TEST_ADDR and flushes the selected DB.
func liveCache(t *testing.T, maxBars int) *Cache {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.FlushDB(context.Background()).Err())
	c := newCache(client, maxBars)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_WriteAndRead(t *testing.T) {
	c := liveCache(t, 30)
	ctx := context.Background()
	bars := testBars(40)

	require.NoError(t, c.WriteBars(ctx, "BTC-USD", bars))

	got, err := c.Bars(ctx, model.BarQuery{Ticker: "BTC-USD"})
	require.NoError(t, err)
	assert.Equal(t, bars[10:], got, "trimmed to MaxBars")

	got, err = c.Bars(ctx, model.BarQuery{Ticker: "BTC-USD", Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, bars[37:], got)

	fixed := bars[39]
	fixed.Close = 1
	require.NoError(t, c.WriteBars(ctx, "BTC-USD", []model.Bar{fixed}))
	got, err = c.Bars(ctx, model.BarQuery{Ticker: "BTC-USD", From: fixed.Time})
	require.NoError(t, err)
	assert.Equal(t, []model.Bar{fixed}, got)

	_, err = c.Bars(ctx, model.BarQuery{Ticker: "ETH-USD"})
	assert.ErrorIs(t, err, model.ErrUnknownSymbol)
	assert.Equal(t, StateClosed, c.breaker.State())

	tickers, err := c.Tickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USD"}, tickers)
}

func TestPublisher_RoundTrip(t *testing.T) {
	c := liveCache(t, 0)
	pub := NewPublisher(c.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out := make(chan engine.Report, 1)
	go pub.Subscribe(ctx, []string{"BTC-USD"}, out)
	time.Sleep(100 * time.Millisecond)

	res, err := engine.Default().Run(testBars(30))
	require.NoError(t, err)
	pub.Publish(&engine.Report{RunID: "r1", Instrument: model.Instrument{Market: model.MarketCrypto, Symbol: "BTC", Ticker: "BTC-USD"}, Result: res})

	select {
	case rep := <-out:
		assert.Equal(t, "r1", rep.RunID)
		assert.Equal(t, res.Verdict.Overall, rep.Result.Verdict.Overall)
	case <-ctx.Done():
		t.Fatal("no report received")
	}
}
