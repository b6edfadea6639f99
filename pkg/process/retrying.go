package process

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/locbench/pkg/retry"
)

// Class tells the retry loop what to do with a failure.
type Class int

const (
	// Transient failures may succeed on another attempt.
	Transient Class = iota
	// Structural failures will fail again no matter how often they are retried.
	Structural
)

// String returns the class name used in logs and metrics.
func (c Class) String() string {
	if c == Structural {
		return "structural"
	}

	return "transient"
}

// Classifier decides whether a failed command is worth retrying.
type Classifier func(cmd Command, out Output, err error) Class

// DefaultClassify treats missing executables and caller cancellation as
// structural and every other failure as transient.
func DefaultClassify(_ Command, _ Output, err error) Class {
	if errors.Is(err, ErrExecutableNotFound) ||
		errors.Is(err, context.Canceled) {
		return Structural
	}

	return Transient
}

// RetryRunner runs a fixed sequence of commands as one retryable attempt.
// A failure anywhere in the sequence fails the attempt; the next attempt
// starts again from the first command.
type RetryRunner struct {
	Runner Runner
	Policy retry.Policy

	// Classify defaults to DefaultClassify.
	Classify Classifier

	// BeforeAttempt resets side effects of a previous attempt. It runs before
	// every attempt, the first one included. An error aborts without retry.
	BeforeAttempt func(ctx context.Context, attempt int) error

	// OnRetry observes each failure that will be retried.
	OnRetry func(cmd Command, attempt int, err error, wait time.Duration)

	Logger *slog.Logger
}

// Run executes cmds under the retry policy and returns the output of the
// last command of the successful attempt.
func (r *RetryRunner) Run(ctx context.Context, cmds ...Command) (Output, error) {
	classify := r.Classify
	if classify == nil {
		classify = DefaultClassify
	}

	lg := r.Logger
	if lg == nil {
		lg = slog.Default()
	}

	var failed Command

	op := func(ctx context.Context, attempt int) (Output, error) {
		if r.BeforeAttempt != nil {
			prepErr := r.BeforeAttempt(ctx, attempt)
			if prepErr != nil {
				return Output{}, retry.Permanent(prepErr)
			}
		}

		var out Output

		for _, cmd := range cmds {
			var err error

			out, err = r.Runner.Run(ctx, cmd)
			if err != nil {
				failed = cmd

				if classify(cmd, out, err) == Structural {
					return out, retry.Permanent(err)
				}

				return out, err
			}
		}

		return out, nil
	}

	notify := retry.WithNotify(func(err error, attempt int, wait time.Duration) {
		lg.DebugContext(ctx, "retrying command",
			"command", failed.String(), "attempt", attempt, "wait", wait, "error", err)

		if r.OnRetry != nil {
			r.OnRetry(failed, attempt, err, wait)
		}
	})

	return retry.Do(ctx, r.Policy, op, notify)
}
