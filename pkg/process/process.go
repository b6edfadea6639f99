// Package process runs external tools and retries the flaky ones.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Sentinel errors.
var (
	// ErrExecutableNotFound is returned when the command's binary is not on PATH.
	ErrExecutableNotFound = errors.New("executable not found")
	// ErrTimeout is returned when a command exceeds its own timeout.
	ErrTimeout = errors.New("command timed out")
)

// maxStderrInError bounds how much stderr is quoted in ExitError messages.
const maxStderrInError = 512

// Command describes one external process invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}

	return c.Name + " " + strings.Join(c.Args, " ")
}

// Output is what a finished process left behind.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// ExitError reports a process that ran but exited non-zero.
type ExitError struct {
	Command  Command
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if len(stderr) > maxStderrInError {
		stderr = stderr[:maxStderrInError] + "..."
	}

	if stderr == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command.Name, e.ExitCode)
	}

	return fmt.Sprintf("%s: exit status %d: %s", e.Command.Name, e.ExitCode, stderr)
}

// Runner executes a single command.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run starts cmd, waits for it and captures both output streams.
func (ExecRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	path, err := exec.LookPath(cmd.Name)
	if err != nil {
		return Output{ExitCode: -1}, fmt.Errorf("%w: %s: %w", ErrExecutableNotFound, cmd.Name, err)
	}

	execCmd := exec.CommandContext(ctx, path, cmd.Args...)
	execCmd.Dir = cmd.Dir

	if len(cmd.Env) > 0 {
		execCmd.Env = append(execCmd.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer

	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	start := time.Now()
	runErr := execCmd.Run()

	out := Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: execCmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	if runErr == nil {
		return out, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) && cmd.Timeout > 0 {
			return out, fmt.Errorf("%w after %s: %s", ErrTimeout, cmd.Timeout, cmd)
		}

		return out, fmt.Errorf("%s: %w", cmd.Name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return out, &ExitError{Command: cmd, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
	}

	return out, fmt.Errorf("run %s: %w", cmd.Name, runErr)
}
