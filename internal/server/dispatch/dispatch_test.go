package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhusq20/APIFarm/internal/common"
	"github.com/zhusq20/APIFarm/internal/logging"
	"github.com/zhusq20/APIFarm/internal/server/upstream"
)

type fakeHandle struct {
	id string
}

func (h *fakeHandle) ID() string       { return h.id }
func (h *fakeHandle) Endpoint() string { return "https://fake" }
func (h *fakeHandle) Post(context.Context, string, []byte) ([]byte, error) {
	return nil, nil
}

func handles(n int) []upstream.Handle {
	out := make([]upstream.Handle, n)
	for i := range out {
		out[i] = &fakeHandle{id: fmt.Sprintf("h%d", i)}
	}
	return out
}

type staticSource struct {
	handles []upstream.Handle
	calls   atomic.Int32
}

func (s *staticSource) Snapshot() []upstream.Handle {
	s.calls.Add(1)
	return append([]upstream.Handle(nil), s.handles...)
}

func TestDispatch_SucceedsOnKthAttempt(t *testing.T) {
	d := New(time.Second, 4, logging.Nop())

	tests := []struct {
		name      string
		size      int
		succeedAt int
	}{
		{"first", 3, 1},
		{"second", 3, 2},
		{"last", 3, 3},
		{"single", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tried []string
			call := func(_ context.Context, h upstream.Handle) ([]byte, error) {
				tried = append(tried, h.ID())
				if len(tried) == tt.succeedAt {
					return []byte("ok-" + h.ID()), nil
				}
				return nil, errors.New("boom")
			}

			snap := handles(tt.size)
			resp, err := d.Dispatch(context.Background(), snap, call)
			require.NoError(t, err)
			assert.Len(t, tried, tt.succeedAt)
			assert.Equal(t, "ok-"+snap[tt.succeedAt-1].ID(), string(resp))
		})
	}
}

func TestDispatch_PoolEmpty(t *testing.T) {
	d := New(time.Second, 4, logging.Nop())
	called := 0
	_, err := d.Dispatch(context.Background(), nil, func(context.Context, upstream.Handle) ([]byte, error) {
		called++
		return nil, nil
	})
	assert.ErrorIs(t, err, common.ErrPoolEmpty)
	assert.Zero(t, called)
}

func TestDispatch_AllKeysFailed(t *testing.T) {
	d := New(time.Second, 4, logging.Nop())
	lastErr := &upstream.StatusError{StatusCode: 429, Body: "rate limited"}

	seen := map[string]int{}
	snap := handles(4)
	_, err := d.Dispatch(context.Background(), snap, func(_ context.Context, h upstream.Handle) ([]byte, error) {
		seen[h.ID()]++
		if h.ID() == "h3" {
			return nil, lastErr
		}
		return nil, errors.New("boom")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAllKeysFailed)

	var akf *AllKeysFailedError
	require.ErrorAs(t, err, &akf)
	assert.Equal(t, 4, akf.Attempts)

	var se *upstream.StatusError
	require.ErrorAs(t, err, &se, "last error is reachable")
	assert.Equal(t, 429, se.StatusCode)

	for _, h := range snap {
		assert.Equal(t, 1, seen[h.ID()], "each handle at most once")
	}
}

func TestDispatch_TimeoutMovesToNextHandle(t *testing.T) {
	d := New(20*time.Millisecond, 4, logging.Nop())

	resp, err := d.Dispatch(context.Background(), handles(2), func(ctx context.Context, h upstream.Handle) ([]byte, error) {
		if h.ID() == "h0" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []byte("fast"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fast", string(resp))
}

func TestDispatch_TimeoutOnEveryHandle(t *testing.T) {
	d := New(10*time.Millisecond, 4, logging.Nop())

	_, err := d.Dispatch(context.Background(), handles(2), func(ctx context.Context, _ upstream.Handle) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, common.ErrAllKeysFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatch_CallerCancellationStops(t *testing.T) {
	d := New(time.Second, 4, logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	_, err := d.Dispatch(ctx, handles(3), func(context.Context, upstream.Handle) ([]byte, error) {
		attempts++
		cancel()
		return nil, errors.New("aborted")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, common.ErrAllKeysFailed)
	assert.Equal(t, 1, attempts)
}

func TestDispatch_AlreadyCancelled(t *testing.T) {
	d := New(time.Second, 4, logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dispatch(ctx, handles(1), func(context.Context, upstream.Handle) ([]byte, error) {
		t.Fatal("must not be called")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatchBatch_PreservesOrder(t *testing.T) {
	d := New(time.Second, 8, logging.Nop())
	src := &staticSource{handles: handles(2)}

	const n = 10
	calls := make([]Call, n)
	for i := range calls {
		calls[i] = func(context.Context, upstream.Handle) ([]byte, error) {
			// later requests finish first
			time.Sleep(time.Duration(n-i) * time.Millisecond)
			return []byte(fmt.Sprintf("r%d", i)), nil
		}
	}

	out, err := d.DispatchBatch(context.Background(), src, calls, 4)
	require.NoError(t, err)
	require.Len(t, out, n)
	for i, r := range out {
		assert.Equal(t, fmt.Sprintf("r%d", i), string(r))
	}
	assert.EqualValues(t, n, src.calls.Load(), "fresh snapshot per request")
}

func TestDispatchBatch_RespectsConcurrency(t *testing.T) {
	d := New(time.Second, 3, logging.Nop())
	src := &staticSource{handles: handles(1)}

	var mu sync.Mutex
	inFlight, peak := 0, 0
	calls := make([]Call, 12)
	for i := range calls {
		calls[i] = func(context.Context, upstream.Handle) ([]byte, error) {
			mu.Lock()
			inFlight++
			peak = max(peak, inFlight)
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return []byte("ok"), nil
		}
	}

	_, err := d.DispatchBatch(context.Background(), src, calls, 100)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, 3, "capped by the dispatcher maximum")
}

func TestDispatchBatch_FirstErrorAborts(t *testing.T) {
	d := New(time.Second, 4, logging.Nop())
	src := &staticSource{handles: handles(1)}

	calls := []Call{
		func(ctx context.Context, _ upstream.Handle) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		func(context.Context, upstream.Handle) ([]byte, error) {
			return nil, errors.New("upstream down")
		},
	}

	out, err := d.DispatchBatch(context.Background(), src, calls, 2)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, common.ErrAllKeysFailed)
}

func TestDispatchBatch_EmptyPool(t *testing.T) {
	d := New(time.Second, 4, logging.Nop())
	calls := []Call{func(context.Context, upstream.Handle) ([]byte, error) { return nil, nil }}

	_, err := d.DispatchBatch(context.Background(), &staticSource{}, calls, 0)
	assert.ErrorIs(t, err, common.ErrPoolEmpty)
}

func TestDispatchBatch_NoCalls(t *testing.T) {
	d := New(time.Second, 4, logging.Nop())
	out, err := d.DispatchBatch(context.Background(), &staticSource{}, nil, 4)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNew_NonPositiveTimeoutIsBounded(t *testing.T) {
	assert.Equal(t, DefaultAttemptTimeout, New(0, 1, logging.Nop()).timeout)
	assert.Equal(t, DefaultAttemptTimeout, New(-time.Second, 1, logging.Nop()).timeout)
	assert.Equal(t, time.Second, New(time.Second, 1, logging.Nop()).timeout)

	var hadDeadline bool
	d := New(0, 1, logging.Nop())
	_, err := d.Dispatch(context.Background(), handles(1), func(ctx context.Context, h upstream.Handle) ([]byte, error) {
		_, hadDeadline = ctx.Deadline()
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	assert.True(t, hadDeadline, "every attempt carries a deadline")
}

func TestClampConcurrency(t *testing.T) {
	d := New(0, 8, logging.Nop())
	assert.Equal(t, 1, d.clampConcurrency(0))
	assert.Equal(t, 1, d.clampConcurrency(-3))
	assert.Equal(t, 5, d.clampConcurrency(5))
	assert.Equal(t, 8, d.clampConcurrency(50))

	assert.Equal(t, 1, New(0, 0, logging.Nop()).maxConcurrency)
}
