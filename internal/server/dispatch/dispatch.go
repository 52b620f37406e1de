// Package dispatch sends a request through a snapshot of upstream handles,
// failing over to the next handle until one succeeds.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zhusq20/APIFarm/internal/common"
	"github.com/zhusq20/APIFarm/internal/logging"
	"github.com/zhusq20/APIFarm/internal/server/upstream"
)

// Call performs one attempt against h.
type Call func(ctx context.Context, h upstream.Handle) ([]byte, error)

// Source hands out fresh handle snapshots. *pool.Pool implements it.
type Source interface {
	Snapshot() []upstream.Handle
}

// AllKeysFailedError is returned when every handle in the snapshot failed.
// It matches common.ErrAllKeysFailed and the last attempt's error.
type AllKeysFailedError struct {
	Attempts int
	Last     error
}

func (e *AllKeysFailedError) Error() string {
	return fmt.Sprintf("all %d API keys failed, last error: %v", e.Attempts, e.Last)
}

func (e *AllKeysFailedError) Unwrap() []error {
	return []error{common.ErrAllKeysFailed, e.Last}
}

type Dispatcher struct {
	timeout        time.Duration
	maxConcurrency int
	logger         logging.Logger
}

// DefaultAttemptTimeout replaces a non-positive attempt timeout.
const DefaultAttemptTimeout = 30 * time.Second

// New returns a Dispatcher bounding each attempt by timeout and each batch
// by maxConcurrency in-flight requests. A timeout of zero or less means
// DefaultAttemptTimeout.
func New(timeout time.Duration, maxConcurrency int, logger logging.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Dispatcher{
		timeout:        timeout,
		maxConcurrency: maxConcurrency,
		logger:         logger.With("module", "dispatch"),
	}
}

// Dispatch tries each handle of snapshot in order, at most once, and
// returns the first successful response. An empty snapshot yields
// common.ErrPoolEmpty without any attempt. Cancellation of ctx stops the
// loop and returns the context error.
func (d *Dispatcher) Dispatch(ctx context.Context, snapshot []upstream.Handle, call Call) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, common.ErrPoolEmpty
	}

	var last error
	attempts := 0
	for _, h := range snapshot {
		attempts++
		resp, err := d.attempt(ctx, h, call)
		if err == nil {
			if attempts > 1 {
				d.logger.Debug(ctx, "request succeeded after failover", "key_id", h.ID(), "attempts", attempts)
			}
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		d.logger.Debug(ctx, "attempt failed", "key_id", h.ID(), "attempt", attempts, "error", err)
		last = err
	}

	d.logger.Warn(ctx, "all keys failed", "attempts", attempts, "error", last)
	return nil, &AllKeysFailedError{Attempts: attempts, Last: last}
}

func (d *Dispatcher) attempt(ctx context.Context, h upstream.Handle, call Call) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := call(attemptCtx, h)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("attempt timed out after %s: %w", d.timeout, err)
	}
	return resp, err
}

// DispatchBatch runs every call as an independent Dispatch with its own
// snapshot from source, with at most concurrency calls in flight.
// Responses are returned in input order. The first failure cancels the
// remaining calls and is returned.
func (d *Dispatcher) DispatchBatch(ctx context.Context, source Source, calls []Call, concurrency int) ([][]byte, error) {
	out := make([][]byte, len(calls))
	if len(calls) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.clampConcurrency(concurrency))

	for i, call := range calls {
		g.Go(func() error {
			resp, err := d.Dispatch(gctx, source.Snapshot(), call)
			if err != nil {
				return err
			}
			out[i] = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Dispatcher) clampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	return min(n, d.maxConcurrency)
}
