package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marksweep/internal/diagnostics"
)

func fastPolicy() Policy {
	return Policy{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2, MaxAttempts: 3}
}

func TestPolicy_Delay(t *testing.T) {
	p := DefaultPolicy()
	// delay before attempt k (k>=2) is min(1000*2^(k-2), 5000)ms
	expected := map[int]time.Duration{
		1: 1000 * time.Millisecond,
		2: 2000 * time.Millisecond,
		3: 4000 * time.Millisecond,
		4: 5000 * time.Millisecond,
		9: 5000 * time.Millisecond,
	}
	for attempt, want := range expected {
		assert.Equal(t, want, p.Delay(attempt), "attempt %d", attempt)
	}
	assert.Equal(t, p.Delay(1), p.Delay(0), "attempt below 1 clamps to the base delay")
	assert.Equal(t, p.MaxDelay, p.Delay(10000), "huge exponents must not overflow")
}

func TestDo_StopsAfterMaxAttemptsAndReturnsLastError(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		diag := diagnostics.NewLog(0)
		exec := NewExecutor(fastPolicy(), diag)

		calls := 0
		var last error
		_, err := Do(context.Background(), exec, "op:test", n, func(ctx context.Context) (int, error) {
			calls++
			last = errors.New("failure")
			return 0, last
		})

		require.Error(t, err)
		assert.Equal(t, n, calls)
		assert.Same(t, last, err, "final failure must be propagated unchanged")
		assert.Equal(t, n-1, diag.Len(), "one entry per non-final failure")
	}
}

func TestDo_DefaultsToPolicyAttempts(t *testing.T) {
	exec := NewExecutor(fastPolicy(), nil)
	calls := 0
	_, err := Do(context.Background(), exec, "op", 0, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_SucceedsAfterTransientFailure(t *testing.T) {
	diag := diagnostics.NewLog(0)
	exec := NewExecutor(fastPolicy(), diag)

	calls := 0
	got, err := Do(context.Background(), exec, "op:flaky", 3, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("temporary")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)

	entries := diag.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "op:flaky", entries[0].Context)
	assert.Equal(t, "temporary", entries[0].Message)
	assert.Equal(t, 1, entries[0].Fields["attempt"])
	assert.Equal(t, 3, entries[0].Fields["maxAttempts"])
}

func TestDo_AttemptIsNotCanceledMidFlight(t *testing.T) {
	exec := NewExecutor(fastPolicy(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Do(ctx, exec, "op", 3, func(attemptCtx context.Context) (int, error) {
		calls++
		cancel()
		assert.NoError(t, attemptCtx.Err(), "running attempt should not observe caller cancellation")
		return 0, errors.New("fail")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled, "cancellation is observed between attempts")
	assert.Equal(t, 1, calls)
}

func TestLabelKind(t *testing.T) {
	assert.Equal(t, "URL-Check", labelKind("URL-Check:https://example.com"))
	assert.Equal(t, "Create-Organization-Folder", labelKind("Create-Organization-Folder"))
}
