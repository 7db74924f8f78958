// Package retry runs fallible operations with bounded attempts and deterministic
// exponential backoff, recording every non-final failure in the diagnostic log.
package retry

import (
	"context"
	"math"
	"strings"
	"time"

	goretry "github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"

	"marksweep/internal/diagnostics"
	"marksweep/internal/metrics"
)

// Policy controls attempts and backoff.
type Policy struct {
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	MaxAttempts   int
}

// DefaultPolicy returns 3 attempts with 1s, 2s, 4s... delays capped at 5s.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:     time.Second,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2,
		MaxAttempts:   3,
	}
}

// Delay is the wait after the given failed attempt (1-based):
// min(BaseDelay * BackoffFactor^(attempt-1), MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if d > float64(p.MaxDelay) || math.IsInf(d, 0) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Executor applies a Policy. It is safe for concurrent use; callers are not deduplicated.
type Executor struct {
	policy Policy
	diag   *diagnostics.Log
}

// NewExecutor builds an executor. A nil diag disables diagnostic recording.
func NewExecutor(policy Policy, diag *diagnostics.Log) *Executor {
	def := DefaultPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.BackoffFactor <= 0 {
		policy.BackoffFactor = def.BackoffFactor
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = def.MaxDelay
	}
	if policy.BaseDelay < 0 {
		policy.BaseDelay = 0
	}
	return &Executor{policy: policy, diag: diag}
}

// Policy returns the executor's effective policy.
func (e *Executor) Policy() Policy { return e.policy }

// Do invokes op at most maxAttempts times (the policy default if <= 0). Each attempt
// runs to completion on a context detached from ctx cancellation; ctx is observed
// only between attempts. The last failure is returned unchanged.
func Do[T any](ctx context.Context, e *Executor, label string, maxAttempts int, op func(ctx context.Context) (T, error)) (T, error) {
	if maxAttempts <= 0 {
		maxAttempts = e.policy.MaxAttempts
	}

	var (
		result  T
		attempt int
	)
	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		return e.policy.Delay(attempt), false
	})

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		v, err := op(context.WithoutCancel(ctx))
		if err == nil {
			result = v
			return nil
		}
		if attempt >= maxAttempts {
			return err
		}

		metrics.RetryFailures.WithLabelValues(labelKind(label)).Inc()
		if e.diag != nil {
			e.diag.Record(ctx, label, err, map[string]any{"attempt": attempt, "maxAttempts": maxAttempts})
		}
		log.Warnf("[%s] Attempt %d failed, retrying in %s...", label, attempt, e.policy.Delay(attempt))
		return goretry.RetryableError(err)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// labelKind strips the per-item suffix so metric label cardinality stays bounded.
func labelKind(label string) string {
	if i := strings.IndexByte(label, ':'); i > 0 {
		return label[:i]
	}
	return label
}
