package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestBreaker(maxFailures int) (*Breaker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker(maxFailures, 10*time.Second)
	b.now = clk.now
	return b, clk
}

func TestBreaker_StartsClosed(t *testing.T) {
	b, _ := newTestBreaker(3)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	b, _ := newTestBreaker(3)
	errFail := errors.New("fail")

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Do(func() error { return errFail }), errFail)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	b, clk := newTestBreaker(1)
	errFail := errors.New("fail")

	_ = b.Do(func() error { return errFail })
	assert.Equal(t, StateOpen, b.State())

	// A failed trial after the cooldown reopens.
	clk.t = clk.t.Add(11 * time.Second)
	_ = b.Do(func() error { return errFail })
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrCircuitOpen)

	// A successful trial closes.
	clk.t = clk.t.Add(11 * time.Second)
	assert.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenAdmitsOneCall(t *testing.T) {
	b, clk := newTestBreaker(1)
	_ = b.Do(func() error { return errors.New("fail") })
	clk.t = clk.t.Add(11 * time.Second)

	var inner error
	innerCalled := false
	err := b.Do(func() error {
		assert.Equal(t, StateHalfOpen, b.State())
		inner = b.Do(func() error { innerCalled = true; return nil })
		return nil
	})
	assert.NoError(t, err)
	assert.ErrorIs(t, inner, ErrCircuitOpen)
	assert.False(t, innerCalled)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_CancelledTrialAllowsAnother(t *testing.T) {
	b, clk := newTestBreaker(1)
	_ = b.Do(func() error { return errors.New("fail") })
	clk.t = clk.t.Add(11 * time.Second)

	assert.ErrorIs(t, b.Do(func() error { return context.DeadlineExceeded }), context.DeadlineExceeded)
	assert.Equal(t, StateHalfOpen, b.State())

	called := false
	assert.NoError(t, b.Do(func() error { called = true; return nil }))
	assert.True(t, called)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3)
	errFail := errors.New("fail")

	_ = b.Do(func() error { return errFail })
	_ = b.Do(func() error { return errFail })
	_ = b.Do(func() error { return nil })
	_ = b.Do(func() error { return errFail })
	_ = b.Do(func() error { return errFail })
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_IgnoresCancellation(t *testing.T) {
	b, _ := newTestBreaker(1)
	_ = b.Do(func() error { return context.Canceled })
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_OnStateChange(t *testing.T) {
	b, clk := newTestBreaker(1)
	var got []string
	b.OnStateChange = func(from, to State) { got = append(got, from.String()+"->"+to.String()) }

	_ = b.Do(func() error { return errors.New("fail") })
	clk.t = clk.t.Add(time.Minute)
	_ = b.Do(func() error { return nil })

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, got)
}
