package retry_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/aris/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func flaky(failures int, value string) (func(context.Context) (string, error), *int) {
	calls := 0
	return func(ctx context.Context) (string, error) {
		calls++
		if calls <= failures {
			return "", errors.New("transient")
		}
		return value, nil
	}, &calls
}

func TestDo_SucceedsAfterTwoFailures(t *testing.T) {
	rec := &sleepRecorder{}
	op, calls := flaky(2, "ok")

	got, err := retry.Do(context.Background(), retry.Policy{Tries: 3, Delay: 10 * time.Millisecond, Sleep: rec.Sleep}, op)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond}, rec.delays)
}

func TestDo_ReraisesLastErrorAfterExhaustion(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	last := errors.New("third")
	op := func(ctx context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, last
		}
		return 0, errors.New("earlier")
	}

	_, err := retry.Do(context.Background(), retry.Policy{Tries: 3, Delay: time.Millisecond, Sleep: rec.Sleep}, op)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, rec.delays, 2)
	assert.ErrorIs(t, err, last)

	var ex *retry.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
}

func TestDo_FirstSuccessDoesNotSleep(t *testing.T) {
	rec := &sleepRecorder{}
	op, calls := flaky(0, "fast")

	got, err := retry.Do(context.Background(), retry.Policy{Tries: 3, Delay: time.Second, Sleep: rec.Sleep}, op)

	require.NoError(t, err)
	assert.Equal(t, "fast", got)
	assert.Equal(t, 1, *calls)
	assert.Empty(t, rec.delays)
}

func TestDo_BackoffGrowsAndIsCapped(t *testing.T) {
	rec := &sleepRecorder{}
	op, _ := flaky(10, "")

	p := retry.Default()
	p.Tries = 5
	p.Sleep = rec.Sleep
	_, err := retry.Do(context.Background(), p, op)

	require.Error(t, err)
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
	}, rec.delays)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	rec := &sleepRecorder{}
	cause := errors.New("bad request")
	calls := 0
	op := func(ctx context.Context) (struct{}, error) {
		calls++
		return struct{}{}, retry.Permanent(cause)
	}

	_, err := retry.Do(context.Background(), retry.Policy{Tries: 3, Sleep: rec.Sleep}, op)

	assert.Equal(t, 1, calls)
	assert.Same(t, cause, err)
	assert.Empty(t, rec.delays)
}

func TestDo_ShouldRetryPredicate(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("nope")
	}
	p := retry.Policy{Tries: 3, ShouldRetry: func(error) bool { return false }}

	_, err := retry.Do(context.Background(), p, op)

	assert.EqualError(t, err, "nope")
	assert.Equal(t, 1, calls)
}

func TestDo_AttemptTimeoutConsumesAnAttempt(t *testing.T) {
	var calls atomic.Int32
	op := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "second", nil
	}
	p := retry.Policy{Tries: 2, AttemptTimeout: 20 * time.Millisecond}

	got, err := retry.Do(context.Background(), p, op)

	require.NoError(t, err)
	assert.Equal(t, "second", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_AbandonsOpIgnoringDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	op := func(ctx context.Context) (string, error) {
		<-release
		return "late", nil
	}
	p := retry.Policy{Tries: 2, AttemptTimeout: 10 * time.Millisecond}

	start := time.Now()
	_, err := retry.Do(context.Background(), p, op)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDo_ParentCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	op := func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("failed")
	}

	_, err := retry.Do(ctx, retry.Policy{Tries: 3}, op)

	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	_, err = retry.Do(ctx, retry.Policy{Tries: 3}, op)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_LogsOneWarningPerRetry(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rec := &sleepRecorder{}
	op, _ := flaky(2, "ok")

	_, err := retry.Do(context.Background(), retry.Policy{Tries: 3, Name: "search", Logger: logger, Sleep: rec.Sleep}, op)

	require.NoError(t, err)
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "level=WARN"))
	assert.Contains(t, out, "attempt=1")
	assert.Contains(t, out, "attempt=2")
	assert.Contains(t, out, "op=search")
}

func TestDo_ZeroTriesMeansOne(t *testing.T) {
	op, calls := flaky(5, "")
	_, err := retry.Do(context.Background(), retry.Policy{}, op)
	assert.Error(t, err)
	assert.Equal(t, 1, *calls)
}
