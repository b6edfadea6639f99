// Package retry runs fallible operations under an explicit backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrExhausted is wrapped into the error returned when every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// ErrInvalidPolicy is returned by Validate for unusable policies.
var ErrInvalidPolicy = errors.New("invalid retry policy")

// Default policy values.
const (
	DefaultMaxAttempts         = 3
	DefaultInitialBackoff      = time.Second
	DefaultMaxBackoff          = 30 * time.Second
	DefaultMultiplier          = 2.0
	DefaultRandomizationFactor = 0.1
)

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`

	// MaxBackoff caps the wait between two attempts.
	MaxBackoff time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`

	// Multiplier grows the wait after every failed attempt.
	Multiplier float64 `mapstructure:"multiplier" yaml:"multiplier"`

	// RandomizationFactor spreads waits by +/- this fraction (0 disables jitter).
	RandomizationFactor float64 `mapstructure:"randomization" yaml:"randomization"`
}

// DefaultPolicy returns 3 attempts with exponential backoff starting at 1s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:         DefaultMaxAttempts,
		InitialBackoff:      DefaultInitialBackoff,
		MaxBackoff:          DefaultMaxBackoff,
		Multiplier:          DefaultMultiplier,
		RandomizationFactor: DefaultRandomizationFactor,
	}
}

// Validate reports whether the policy can drive a retry loop.
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be >= 1, got %d", ErrInvalidPolicy, p.MaxAttempts)
	case p.InitialBackoff < 0 || p.MaxBackoff < 0:
		return fmt.Errorf("%w: backoff durations must not be negative", ErrInvalidPolicy)
	case p.Multiplier < 1:
		return fmt.Errorf("%w: multiplier must be >= 1, got %g", ErrInvalidPolicy, p.Multiplier)
	case p.RandomizationFactor < 0 || p.RandomizationFactor >= 1:
		return fmt.Errorf("%w: randomization must be in [0, 1), got %g", ErrInvalidPolicy, p.RandomizationFactor)
	}

	return nil
}

// Backoff returns the wait sequence of the policy as a fresh BackOff.
func (p Policy) Backoff() backoff.BackOff {
	maxBackoff := p.MaxBackoff
	if maxBackoff < p.InitialBackoff {
		maxBackoff = p.InitialBackoff
	}

	exp := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialBackoff,
		RandomizationFactor: p.RandomizationFactor,
		Multiplier:          p.Multiplier,
		MaxInterval:         maxBackoff,
	}
	exp.Reset()

	return exp
}

// Operation is one attempt. attempt starts at 1.
type Operation[T any] func(ctx context.Context, attempt int) (T, error)

// NotifyFunc observes a failed attempt before the wait preceding the next one.
type NotifyFunc func(err error, attempt int, wait time.Duration)

type options struct {
	notify NotifyFunc
}

// Option customizes Do.
type Option func(*options)

// WithNotify registers a callback invoked after every retried failure.
func WithNotify(fn NotifyFunc) Option {
	return func(o *options) { o.notify = fn }
}

// Permanent marks err as not worth retrying. Do returns it without waiting.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the context ends
// or the policy runs out of attempts. Exhaustion is reported as an error
// wrapping both ErrExhausted and the last failure.
func Do[T any](ctx context.Context, policy Policy, op Operation[T], opts ...Option) (T, error) {
	var zero T

	err := policy.Validate()
	if err != nil {
		return zero, err
	}

	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		attempt int
		permErr error
	)

	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++

		val, opErr := op(ctx, attempt)

		var perm *backoff.PermanentError
		if errors.As(opErr, &perm) {
			permErr = perm.Unwrap()
		}

		return val, opErr
	},
		backoff.WithBackOff(policy.Backoff()),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(notifyErr error, wait time.Duration) {
			if cfg.notify != nil {
				cfg.notify(notifyErr, attempt, wait)
			}
		}),
	)
	if err == nil {
		return res, nil
	}

	if permErr != nil {
		return zero, permErr
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, fmt.Errorf("retry interrupted after %d attempts: %w", attempt, err)
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
}
