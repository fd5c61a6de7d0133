package redis

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("redis down")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int) (*CircuitBreaker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("test", maxFailures, 10*time.Second)
	cb.now = clk.Now
	return cb, clk
}

func fail() error    { return errDown }
func succeed() error { return nil }

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)
	assert.Equal(t, StateClosed, cb.CurrentState())

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(fail), errDown)
	}
	assert.Equal(t, StateOpen, cb.CurrentState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, int64(1), cb.Rejected())
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(3)
	cb.Execute(fail)
	cb.Execute(fail)
	cb.Execute(succeed)
	cb.Execute(fail)
	cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.CurrentState())
}

func TestBreaker_ProbeAfterCooldown(t *testing.T) {
	tests := []struct {
		name  string
		probe func() error
		want  State
	}{
		{"probe succeeds", succeed, StateClosed},
		{"probe fails", fail, StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clk := newTestBreaker(1)
			cb.Execute(fail)
			require.Equal(t, StateOpen, cb.CurrentState())

			clk.Advance(5 * time.Second)
			assert.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen)

			clk.Advance(5 * time.Second)
			cb.Execute(tt.probe)
			assert.Equal(t, tt.want, cb.CurrentState())
		})
	}
}

func TestBreaker_ReopenRestartsCooldown(t *testing.T) {
	cb, clk := newTestBreaker(1)
	cb.Execute(fail)
	clk.Advance(10 * time.Second)
	cb.Execute(fail)

	clk.Advance(9 * time.Second)
	assert.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen)
	clk.Advance(time.Second)
	assert.NoError(t, cb.Execute(succeed))
}

func TestBreaker_SingleProbeInFlight(t *testing.T) {
	cb, clk := newTestBreaker(1)
	cb.Execute(fail)
	clk.Advance(10 * time.Second)

	var inner error
	err := cb.Execute(func() error {
		inner = cb.Execute(succeed)
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrCircuitOpen)
	assert.Equal(t, StateClosed, cb.CurrentState())
}

func TestBreaker_Transitions(t *testing.T) {
	cb, clk := newTestBreaker(1)
	var seen []string
	cb.OnStateChange = func(from, to State) {
		seen = append(seen, from.String()+">"+to.String())
	}

	cb.Execute(fail)
	clk.Advance(10 * time.Second)
	cb.Execute(succeed)

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, seen)
}

func TestBreaker_Nil(t *testing.T) {
	var cb *CircuitBreaker
	called := false
	require.NoError(t, cb.Execute(func() error { called = true; return nil }))
	assert.True(t, called)
	assert.Equal(t, StateClosed, cb.CurrentState())
	assert.Zero(t, cb.Rejected())
}
