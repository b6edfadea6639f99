package process_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locbench/pkg/process"
	"github.com/Sumatoshi-tech/locbench/pkg/retry"
)

func sh(script string) process.Command {
	return process.Command{Name: "sh", Args: []string{"-c", script}}
}

func TestExecRunner_CapturesOutput(t *testing.T) {
	t.Parallel()

	out, err := process.ExecRunner{}.Run(context.Background(), sh("echo hello; echo oops >&2"))
	require.NoError(t, err)

	assert.Equal(t, "hello\n", string(out.Stdout))
	assert.Equal(t, "oops\n", string(out.Stderr))
	assert.Zero(t, out.ExitCode)
}

func TestExecRunner_UsesWorkingDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cmd := sh("pwd")
	cmd.Dir = dir

	out, err := process.ExecRunner{}.Run(context.Background(), cmd)
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, resolved+"\n", string(out.Stdout))
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	t.Parallel()

	out, err := process.ExecRunner{}.Run(context.Background(), sh("echo broken >&2; exit 3"))

	var exitErr *process.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, 3, out.ExitCode)
	assert.Contains(t, err.Error(), "broken")
}

func TestExecRunner_MissingExecutable(t *testing.T) {
	t.Parallel()

	_, err := process.ExecRunner{}.Run(context.Background(), process.Command{Name: "locbench-definitely-missing"})
	require.ErrorIs(t, err, process.ErrExecutableNotFound)
}

func TestExecRunner_Timeout(t *testing.T) {
	t.Parallel()

	cmd := sh("sleep 5")
	cmd.Timeout = 50 * time.Millisecond

	_, err := process.ExecRunner{}.Run(context.Background(), cmd)
	require.ErrorIs(t, err, process.ErrTimeout)
}

func TestCommand_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "git", process.Command{Name: "git"}.String())
	assert.Equal(t, "git checkout --force abc", process.Command{Name: "git", Args: []string{"checkout", "--force", "abc"}}.String())
}

// scriptedRunner fails the first failures calls with the given error.
type scriptedRunner struct {
	failures int
	err      error
	calls    []string
}

func (r *scriptedRunner) Run(_ context.Context, cmd process.Command) (process.Output, error) {
	r.calls = append(r.calls, cmd.Name)
	if len(r.calls) <= r.failures {
		return process.Output{ExitCode: 1}, r.err
	}

	return process.Output{Stdout: []byte(cmd.Name)}, nil
}

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 2}
}

func TestRetryRunner_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	inner := &scriptedRunner{failures: 2, err: &process.ExitError{ExitCode: 128}}

	var retried []int

	rr := &process.RetryRunner{
		Runner: inner,
		Policy: fastPolicy(3),
		OnRetry: func(_ process.Command, attempt int, _ error, _ time.Duration) {
			retried = append(retried, attempt)
		},
	}

	out, err := rr.Run(context.Background(), process.Command{Name: "clone"})
	require.NoError(t, err)

	assert.Equal(t, "clone", string(out.Stdout))
	assert.Len(t, inner.calls, 3)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryRunner_StructuralFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	inner := &scriptedRunner{failures: 5, err: process.ErrExecutableNotFound}
	rr := &process.RetryRunner{Runner: inner, Policy: fastPolicy(5)}

	_, err := rr.Run(context.Background(), process.Command{Name: "git"})

	require.ErrorIs(t, err, process.ErrExecutableNotFound)
	require.NotErrorIs(t, err, retry.ErrExhausted)
	assert.Len(t, inner.calls, 1)
}

func TestRetryRunner_CustomClassifier(t *testing.T) {
	t.Parallel()

	errBadRef := errors.New("bad ref")
	inner := &scriptedRunner{failures: 5, err: errBadRef}
	rr := &process.RetryRunner{
		Runner: inner,
		Policy: fastPolicy(5),
		Classify: func(_ process.Command, _ process.Output, err error) process.Class {
			if errors.Is(err, errBadRef) {
				return process.Structural
			}

			return process.Transient
		},
	}

	_, err := rr.Run(context.Background(), process.Command{Name: "git"})
	require.ErrorIs(t, err, errBadRef)
	assert.Len(t, inner.calls, 1)
}

func TestRetryRunner_ExhaustionWrapsLastError(t *testing.T) {
	t.Parallel()

	inner := &scriptedRunner{failures: 10, err: &process.ExitError{ExitCode: 128, Stderr: "early EOF"}}
	rr := &process.RetryRunner{Runner: inner, Policy: fastPolicy(3)}

	_, err := rr.Run(context.Background(), process.Command{Name: "git"})

	require.ErrorIs(t, err, retry.ErrExhausted)

	var exitErr *process.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Len(t, inner.calls, 3)
}

func TestRetryRunner_SequenceRestartsFromFirstCommand(t *testing.T) {
	t.Parallel()

	inner := &scriptedRunner{failures: 1, err: &process.ExitError{ExitCode: 1}}
	rr := &process.RetryRunner{Runner: inner, Policy: fastPolicy(3)}

	_, err := rr.Run(context.Background(), process.Command{Name: "checkout"}, process.Command{Name: "clean"})
	require.NoError(t, err)

	assert.Equal(t, []string{"checkout", "checkout", "clean"}, inner.calls)
}

func TestRetryRunner_BeforeAttemptResetsState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	marker := filepath.Join(dir, "partial")

	var attempts []int

	rr := &process.RetryRunner{
		Runner: process.ExecRunner{},
		Policy: fastPolicy(3),
		BeforeAttempt: func(_ context.Context, attempt int) error {
			attempts = append(attempts, attempt)

			return os.RemoveAll(marker)
		},
	}

	// Leaves a partial artifact behind and fails until the marker survives from
	// a previous attempt, which BeforeAttempt prevents.
	cmd := sh("if [ -e partial ]; then exit 0; fi; touch partial; exit 1")
	cmd.Dir = dir

	_, err := rr.Run(context.Background(), cmd)
	require.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestRetryRunner_BeforeAttemptErrorAborts(t *testing.T) {
	t.Parallel()

	errPrep := errors.New("cannot reset")
	inner := &scriptedRunner{}
	rr := &process.RetryRunner{
		Runner:        inner,
		Policy:        fastPolicy(3),
		BeforeAttempt: func(context.Context, int) error { return errPrep },
	}

	_, err := rr.Run(context.Background(), process.Command{Name: "git"})
	require.ErrorIs(t, err, errPrep)
	assert.Empty(t, inner.calls)
}
