package workpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_PreservesInputOrder(t *testing.T) {
	symbols := []string{"a", "b", "c", "d", "e", "f"}
	results := Run(context.Background(), 3, symbols, func(_ context.Context, s string) (string, error) {
		if s == "a" {
			time.Sleep(20 * time.Millisecond)
		}
		return s + "!", nil
	})
	require.Len(t, results, len(symbols))
	for i, r := range results {
		assert.Equal(t, symbols[i], r.Symbol)
		assert.True(t, r.OK())
		assert.Equal(t, symbols[i]+"!", r.Value)
	}
}

func TestRun_IsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	results := Run(context.Background(), 2, []string{"ok", "err", "panic"}, func(_ context.Context, s string) (int, error) {
		switch s {
		case "err":
			return 0, boom
		case "panic":
			panic("bad bar")
		}
		return 1, nil
	})
	assert.True(t, results[0].OK())
	assert.ErrorIs(t, results[1].Err, boom)
	require.Error(t, results[2].Err)
	assert.Contains(t, results[2].Err.Error(), "panic")
}

func TestRun_BoundsConcurrency(t *testing.T) {
	var active, peak int32
	symbols := make([]string, 20)
	for i := range symbols {
		symbols[i] = string(rune('a' + i))
	}
	Run(context.Background(), 4, symbols, func(_ context.Context, _ string) (struct{}, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return struct{}{}, nil
	})
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := Run(ctx, 2, []string{"x", "y"}, func(_ context.Context, _ string) (int, error) {
		return 1, nil
	})
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestRun_Empty(t *testing.T) {
	assert.Empty(t, Run(context.Background(), 4, nil, func(context.Context, string) (int, error) { return 0, nil }))
}
