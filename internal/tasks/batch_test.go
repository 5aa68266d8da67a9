package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tubesync/internal/shared"
)

var errFlaky = errors.New("flaky worker")

// flakyWorker fails the first n calls, then echoes its batch.
func flakyWorker(n int, calls *int) func(context.Context, []int) ([]int, error) {
	return func(_ context.Context, batch []int) ([]int, error) {
		*calls++
		if *calls <= n {
			return nil, errFlaky
		}
		return batch, nil
	}
}

func TestProcessInBatches(t *testing.T) {
	ctx := context.Background()

	t.Run("empty input is a no-op", func(t *testing.T) {
		calls, progress := 0, 0
		out, err := ProcessInBatches(ctx, []int{}, flakyWorker(0, &calls), BatchOptions{
			OnProgress: func(int, int) { progress++ },
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if len(out) != 0 || calls != 0 || progress != 0 {
			t.Errorf("expected nothing to run, got %d results, %d calls, %d progress", len(out), calls, progress)
		}
	})

	t.Run("partitions and reports cumulative progress", func(t *testing.T) {
		items := make([]int, 120)
		for i := range items {
			items[i] = i
		}

		calls := 0
		var seen [][2]int
		out, err := ProcessInBatches(ctx, items, flakyWorker(0, &calls), BatchOptions{
			BatchSize:  50,
			OnProgress: func(current, total int) { seen = append(seen, [2]int{current, total}) },
		})
		if err != nil {
			t.Fatalf("ProcessInBatches failed: %v", err)
		}

		if calls != 3 {
			t.Errorf("expected 3 batches, got %d", calls)
		}
		want := [][2]int{{50, 120}, {100, 120}, {120, 120}}
		if len(seen) != len(want) {
			t.Fatalf("expected %v progress calls, got %v", want, seen)
		}
		for i := range want {
			if seen[i] != want[i] {
				t.Errorf("progress %d: expected %v, got %v", i, want[i], seen[i])
			}
		}
		for i, v := range out {
			if v != i {
				t.Fatalf("result %d out of order: %d", i, v)
			}
		}
	})

	t.Run("fails twice then succeeds within three attempts", func(t *testing.T) {
		calls := 0
		out, err := ProcessInBatches(ctx, []int{1, 2}, flakyWorker(2, &calls), BatchOptions{MaxRetries: 3})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if len(out) != 2 || calls != 3 {
			t.Errorf("expected 2 results after 3 calls, got %d after %d", len(out), calls)
		}
	})

	t.Run("fails twice with two attempts aborts", func(t *testing.T) {
		calls := 0
		_, err := ProcessInBatches(ctx, []int{1, 2}, flakyWorker(2, &calls), BatchOptions{MaxRetries: 2})
		if !errors.Is(err, errFlaky) {
			t.Fatalf("expected wrapped worker error, got %v", err)
		}
		if !strings.Contains(err.Error(), "after 2 attempts") {
			t.Errorf("unexpected message %q", err.Error())
		}
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
	})

	t.Run("default attempts", func(t *testing.T) {
		calls := 0
		_, err := ProcessInBatches(ctx, []int{1}, flakyWorker(10, &calls), BatchOptions{})
		if err == nil {
			t.Fatal("expected failure")
		}
		if calls != DefaultMaxRetries {
			t.Errorf("expected %d calls, got %d", DefaultMaxRetries, calls)
		}
	})

	t.Run("one attempt never retries", func(t *testing.T) {
		calls := 0
		_, err := ProcessInBatches(ctx, []int{1}, flakyWorker(1, &calls), BatchOptions{MaxRetries: 1})
		if err == nil {
			t.Fatal("expected failure")
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("later batch failure discards earlier results", func(t *testing.T) {
		calls := 0
		worker := func(_ context.Context, batch []int) ([]int, error) {
			calls++
			if batch[0] >= 2 {
				return nil, errFlaky
			}
			return batch, nil
		}

		out, err := ProcessInBatches(ctx, []int{0, 1, 2, 3}, worker, BatchOptions{BatchSize: 2, MaxRetries: 2})
		if err == nil || out != nil {
			t.Fatalf("expected abort without results, got %v, %v", out, err)
		}
		if calls != 3 {
			t.Errorf("expected 1 + 2 calls, got %d", calls)
		}
	})

	t.Run("persistence errors are not retried", func(t *testing.T) {
		calls := 0
		worker := func(context.Context, []int) ([]int, error) {
			calls++
			return nil, &shared.PersistenceError{Op: "upsert video", Key: "v1", Err: errors.New("constraint failed")}
		}

		_, err := ProcessInBatches(ctx, []int{1}, worker, BatchOptions{MaxRetries: 5})
		var perr *shared.PersistenceError
		if !errors.As(err, &perr) {
			t.Fatalf("expected PersistenceError, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected a single attempt, got %d", calls)
		}
	})

	t.Run("refresh errors are not retried", func(t *testing.T) {
		calls := 0
		worker := func(context.Context, []int) ([]int, error) {
			calls++
			return nil, &shared.RefreshError{Err: shared.ErrRefreshFailed}
		}

		_, err := ProcessInBatches(ctx, []int{1}, worker, BatchOptions{MaxRetries: 5})
		if !errors.Is(err, shared.ErrRefreshFailed) || calls != 1 {
			t.Errorf("expected one attempt ending in refresh failure, got %d calls, %v", calls, err)
		}
	})

	t.Run("cancellation interrupts backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		worker := func(context.Context, []int) ([]int, error) {
			calls++
			cancel()
			return nil, errFlaky
		}

		start := time.Now()
		_, err := ProcessInBatches(ctx, []int{1}, worker, BatchOptions{MaxRetries: 3, Backoff: time.Hour})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected no retry after cancellation, got %d calls", calls)
		}
		if time.Since(start) > time.Second {
			t.Error("backoff was not interrupted")
		}
	})

	t.Run("waits between attempts", func(t *testing.T) {
		calls := 0
		start := time.Now()
		_, err := ProcessInBatches(ctx, []int{1}, flakyWorker(2, &calls), BatchOptions{MaxRetries: 3, Backoff: 10 * time.Millisecond})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
			t.Errorf("expected at least 10ms + 20ms of backoff, took %v", elapsed)
		}
	})
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		base  time.Duration
		retry int
		want  time.Duration
	}{
		{0, 1, 0},
		{100 * time.Millisecond, 1, 100 * time.Millisecond},
		{100 * time.Millisecond, 2, 200 * time.Millisecond},
		{100 * time.Millisecond, 3, 400 * time.Millisecond},
		{2 * time.Second, 3, maxBackoff},
		{10 * time.Second, 1, maxBackoff},
		{time.Millisecond, 40, maxBackoff},
	}

	for _, tt := range tests {
		if got := backoff(tt.base, tt.retry); got != tt.want {
			t.Errorf("backoff(%v, %d) = %v, want %v", tt.base, tt.retry, got, tt.want)
		}
	}
}
