package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"trading-signals/internal/engine"

	goredis "github.com/go-redis/redis/v8"
)

// SignalChannel returns the Pub/Sub channel that carries reports for ticker.
func SignalChannel(ticker string) string { return "pub:signals:" + ticker }

// Publisher pushes engine reports to Redis Pub/Sub for downstream consumers.
// Reports are fire-and-forget; nothing is stored.
type Publisher struct {
	client  *goredis.Client
	timeout time.Duration
}

// NewPublisher creates a Publisher on an existing client.
func NewPublisher(client *goredis.Client) *Publisher {
	return &Publisher{client: client, timeout: 2 * time.Second}
}

func (p *Publisher) Publish(rep *engine.Report) {
	data, err := json.Marshal(rep)
	if err != nil {
		log.Printf("[redis] marshal report %s: %v", rep.RunID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.Publish(ctx, SignalChannel(rep.Instrument.Ticker), data).Err(); err != nil {
		log.Printf("[redis] publish %s: %v", rep.RunID, err)
	}
}

// Subscribe listens for reports on the given tickers' channels until ctx is
// done. Undecodable messages are skipped.
func (p *Publisher) Subscribe(ctx context.Context, tickers []string, out chan<- engine.Report) error {
	channels := make([]string, len(tickers))
	for i, t := range tickers {
		channels[i] = SignalChannel(t)
	}
	pubsub := p.client.Subscribe(ctx, channels...)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var rep engine.Report
			if err := json.Unmarshal([]byte(msg.Payload), &rep); err != nil {
				log.Printf("[redis] skip message on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case out <- rep:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
