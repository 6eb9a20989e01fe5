package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/andriantochan/signbench/pkg/signing"
)

// Logger defines the logging interface for the Engine.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// RefreshFunc renews the workflow's access token after an unauthorized
// response. It is the one place retry recovery mutates shared state; the
// workflow is strictly sequential so no synchronization is required.
type RefreshFunc func(ctx context.Context) error

// ExhaustedError is returned when a retryable operation used up its budget.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted for %s after %d attempts: %v", e.Operation, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Engine executes operations with bounded retries and exponential backoff.
// Classification follows the signing error taxonomy: unauthorized triggers a
// token refresh and an immediate re-attempt, client errors propagate after a
// single attempt, transient errors back off and retry.
type Engine struct {
	MaxRetries    int
	BackoffFactor float64 // seconds; wait before retry n is 2^n * factor

	refresh RefreshFunc
	sleep   func(ctx context.Context, d time.Duration) error
	logger  Logger
}

func NewEngine(maxRetries int, backoffFactor float64, refresh RefreshFunc, logger Logger) *Engine {
	return &Engine{
		MaxRetries:    maxRetries,
		BackoffFactor: backoffFactor,
		refresh:       refresh,
		sleep:         sleepCtx,
		logger:        logger,
	}
}

// SetSleep replaces the backoff sleep primitive. Tests use this to observe
// wait durations without real delays.
func (e *Engine) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	e.sleep = fn
}

// Do runs fn up to MaxRetries+1 times. The first unauthorized failure
// refreshes the token and re-attempts without consuming a backoff wait;
// after that, auth failures back off like transient ones so a flapping
// token cannot spin the loop.
func (e *Engine) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error
	refreshed := false
	attempts := 0

	for retryN := 0; retryN <= e.MaxRetries; retryN++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		attempts++
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		switch signing.ClassOf(lastErr) {
		case signing.AuthExpired:
			if e.refresh == nil {
				return lastErr
			}
			e.logger.Warnf("%s got unauthorized, refreshing token and retrying", operation)
			if refreshErr := e.refresh(ctx); refreshErr != nil {
				e.logger.Warnf("Token refresh for %s failed: %v", operation, refreshErr)
				lastErr = refreshErr
				break
			}
			if !refreshed {
				// First refresh re-attempts immediately; it did not
				// spend the failure on a flaky server.
				refreshed = true
				retryN--
				continue
			}
		case signing.TransientError:
			// Fall through to backoff below.
		default:
			// Client errors and contract violations cannot succeed on
			// retry; propagate after the single attempt.
			return lastErr
		}

		if retryN == e.MaxRetries {
			break
		}
		wait := e.backoff(retryN + 1)
		e.logger.Infof("%s attempt %d failed (%v), retrying in %s", operation, attempts, lastErr, wait)
		if err := e.sleep(ctx, wait); err != nil {
			return err
		}
	}

	return &ExhaustedError{Operation: operation, Attempts: attempts, Last: lastErr}
}

// backoff returns the wait before retry n (n >= 1): 2^n * factor seconds.
func (e *Engine) backoff(n int) time.Duration {
	secs := math.Pow(2, float64(n)) * e.BackoffFactor
	return time.Duration(secs * float64(time.Second))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
