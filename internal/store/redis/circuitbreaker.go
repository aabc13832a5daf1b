package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// State is the position of a Breaker.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls fail fast with ErrCircuitOpen
	StateHalfOpen              // one trial call decides between closed and open
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Do while the breaker is open, and while
// half-open with a trial call already in flight.
var ErrCircuitOpen = errors.New("redis circuit breaker is open")

// Breaker stops hammering an unreachable Redis. After maxFailures
// consecutive failed calls it opens for cooldown, then lets a single trial
// call through: success closes it, failure reopens it. A trial that ends in
// a context error or redis.Nil leaves it half-open for the next caller.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	trial       bool // a half-open call is in flight
	now         func() time.Time

	// OnStateChange is called with the lock held; keep it short.
	OnStateChange func(from, to State)
}

// NewBreaker creates a closed breaker.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{maxFailures: maxFailures, cooldown: cooldown, now: time.Now}
}

// Do runs fn unless the breaker is open. Context errors and redis.Nil
// returned by fn do not count as failures.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
	}
	isTrial := false
	if b.state == StateHalfOpen {
		if b.trial {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.trial = true
		isTrial = true
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if isTrial {
		b.trial = false
	}
	switch {
	case err == nil:
		b.failures = 0
		if b.state != StateClosed {
			b.setState(StateClosed)
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, goredis.Nil):
	default:
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.openedAt = b.now()
			b.setState(StateOpen)
		}
	}
	return err
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) setState(to State) {
	from := b.state
	b.state = to
	if to == StateClosed {
		b.failures = 0
	}
	if b.OnStateChange != nil && from != to {
		b.OnStateChange(from, to)
	}
}
