// Package retry runs one unit of upstream work with a per-attempt deadline and
// a bounded number of retries. Failures tagged with Terminal are not retried.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sourcegraph/conc/panics"
)

const (
	defaultMaxRetries     = 3
	defaultAttemptTimeout = 30 * time.Second
)

// ErrAttemptTimeout is returned when a single attempt exceeds its deadline.
// It is transient.
var ErrAttemptTimeout = errors.New("attempt timed out")

// Policy configures Do.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// AttemptTimeout bounds every single attempt.
	AttemptTimeout time.Duration
	// Delay is the pause between attempts.
	Delay time.Duration
	// OnRetry, if set, is called before every retry with the failed attempt's error.
	OnRetry func(err error, wait time.Duration)
}

// DefaultPolicy returns 3 retries with a 30 second attempt deadline.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     defaultMaxRetries,
		AttemptTimeout: defaultAttemptTimeout,
	}
}

// WithOnRetry returns a copy of p with the retry hook set.
func (p Policy) WithOnRetry(fn func(err error, wait time.Duration)) Policy {
	p.OnRetry = fn
	return p
}

// TerminalError marks a failure that must not be retried.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string { return e.Err.Error() }
func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal tags err as non-retryable. A nil error stays nil.
func Terminal(err error) error {
	if err == nil || IsTerminal(err) {
		return err
	}
	return &TerminalError{Err: err}
}

// IsTerminal reports whether err (or anything it wraps) was tagged Terminal.
func IsTerminal(err error) bool {
	var t *TerminalError
	return errors.As(err, &t)
}

// Do calls fn until it succeeds, returns a terminal error, or the retry budget
// is spent. Each call receives a context that expires after p.AttemptTimeout.
// The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = defaultAttemptTimeout
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}

	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if p.Delay > 0 {
		b = backoff.NewConstantBackOff(p.Delay)
	}

	tries := uint(p.MaxRetries) + 1
	budget := time.Duration(tries)*(p.AttemptTimeout+p.Delay) + time.Second

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(tries),
		backoff.WithMaxElapsedTime(budget),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(p.OnRetry))
	}

	operation := func() (T, error) {
		v, err := attempt(ctx, p.AttemptTimeout, fn)
		if err != nil && (IsTerminal(err) || ctx.Err() != nil) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	v, err := backoff.Retry(ctx, operation, opts...)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return v, err
}

type outcome[T any] struct {
	val T
	err error
}

// attempt races one call of fn against timeout. A panic inside fn is
// converted into a terminal error.
func attempt[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		var o outcome[T]
		var pc panics.Catcher
		pc.Try(func() { o.val, o.err = fn(actx) })
		if r := pc.Recovered(); r != nil {
			o.err = Terminal(fmt.Errorf("upstream call panicked: %w", r.AsError()))
		}
		done <- o
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-actx.Done():
		select {
		case o := <-done:
			return o.val, o.err
		default:
		}
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, ErrAttemptTimeout
	}
}
