package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tubesync/internal/shared"
)

const (
	DefaultBatchSize  = 50
	DefaultMaxRetries = 3

	maxBackoff = 5 * time.Second
)

// BatchOptions configures [ProcessInBatches].
type BatchOptions struct {
	BatchSize int // Items per batch (default: 50)

	// MaxRetries counts attempts per batch, including the first. Zero or less
	// means DefaultMaxRetries; 1 runs each batch once without retrying.
	MaxRetries int

	Backoff    time.Duration            // Wait before the first retry, doubled per attempt; zero retries immediately
	OnProgress func(current, total int) // Called after each batch with cumulative counts
}

// ProcessInBatches partitions items into batches of opts.BatchSize and hands each to worker.
//
// A failing batch is attempted up to opts.MaxRetries times before the whole run aborts.
// Persistence errors, refresh errors and context errors abort at once.
// Results are concatenated in batch order. An empty input is a no-op.
func ProcessInBatches[T, R any](
	ctx context.Context,
	items []T,
	worker func(context.Context, []T) ([]R, error),
	opts BatchOptions,
) ([]R, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}

	results := make([]R, 0, len(items))
	for start := 0; start < len(items); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(items))

		out, err := runBatch(ctx, items[start:end], worker, opts)
		if err != nil {
			return nil, err
		}
		results = append(results, out...)

		if opts.OnProgress != nil {
			opts.OnProgress(end, len(items))
		}
	}
	return results, nil
}

func runBatch[T, R any](
	ctx context.Context,
	batch []T,
	worker func(context.Context, []T) ([]R, error),
	opts BatchOptions,
) ([]R, error) {
	var err error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 1 {
			if werr := wait(ctx, backoff(opts.Backoff, attempt-1)); werr != nil {
				return nil, fmt.Errorf("failed to process batch after %d attempts: %w", attempt-1, werr)
			}
		}

		var out []R
		out, err = worker(ctx, batch)
		if err == nil {
			return out, nil
		}
		if !retryable(err) {
			return nil, fmt.Errorf("failed to process batch after %d attempts: %w", attempt, err)
		}
	}
	return nil, fmt.Errorf("failed to process batch after %d attempts: %w", opts.MaxRetries, err)
}

// backoff returns base * 2^(retry-1), capped at [maxBackoff].
func backoff(base time.Duration, retry int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return min(d, maxBackoff)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryable(err error) bool {
	var (
		perr *shared.PersistenceError
		rerr *shared.RefreshError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.As(err, &perr), errors.As(err, &rerr):
		return false
	default:
		return true
	}
}
