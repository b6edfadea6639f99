// Package gitlib drives the git executable for the clone/checkout cycle of
// the pipeline. Every network-sensitive operation is retried; every retry
// starts from a state equivalent to a first attempt.
package gitlib

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/locbench/pkg/observability"
	"github.com/Sumatoshi-tech/locbench/pkg/process"
	"github.com/Sumatoshi-tech/locbench/pkg/retry"
)

// DefaultBinary is the git executable looked up on PATH.
const DefaultBinary = "git"

// Operation names used in logs and metrics.
const (
	OpClone    = "clone"
	OpCheckout = "checkout"
	OpFetch    = "fetch"
	OpSparse   = "sparse-clone"
)

// Workspace is a directory the client may wipe between attempts.
type Workspace interface {
	Path() string
	Reset() error
}

// Client runs git commands against one working directory at a time.
// It holds no per-repository state and is safe for concurrent use.
type Client struct {
	binary          string
	runner          process.Runner
	policy          retry.Policy
	cloneTimeout    time.Duration
	checkoutTimeout time.Duration
	logger          *slog.Logger
	metrics         *observability.PipelineMetrics
}

// Option configures a Client.
type Option func(*Client)

// WithBinary overrides the git executable.
func WithBinary(binary string) Option {
	return func(c *Client) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithRunner replaces the process runner.
func WithRunner(r process.Runner) Option {
	return func(c *Client) { c.runner = r }
}

// WithPolicy sets the retry policy shared by clone, checkout and fetch.
func WithPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithTimeouts bounds single clone/fetch and checkout attempts. Zero disables a bound.
func WithTimeouts(clone, checkout time.Duration) Option {
	return func(c *Client) {
		c.cloneTimeout = clone
		c.checkoutTimeout = checkout
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records durations and retries.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a Client with the default retry policy.
func NewClient(opts ...Option) *Client {
	c := &Client{
		binary: DefaultBinary,
		runner: process.ExecRunner{},
		policy: retry.DefaultPolicy(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Version runs `git --version`; used as a start-up check.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.runner.Run(ctx, c.command("", 0, "--version"))
	if err != nil {
		return "", fmt.Errorf("git version: %w", err)
	}

	return strings.TrimSpace(string(out.Stdout)), nil
}

// Clone makes a blobless, unchecked-out clone of remote into ws. The
// workspace is emptied before every attempt so a half-written clone never
// leaks into the next one.
func (c *Client) Clone(ctx context.Context, remote string, ws Workspace) error {
	cmd := c.command("", c.cloneTimeout,
		"clone", "--filter=blob:none", "--no-checkout", "--quiet", "--", remote, ws.Path())

	err := c.run(ctx, OpClone, resetBefore(ws), cmd)
	if err != nil {
		return fmt.Errorf("clone %s: %w", RedactURL(remote), err)
	}

	return nil
}

// Checkout forces the work tree of dir to exactly commit: local changes are
// discarded and untracked files removed. Repeating it after a failed attempt
// converges to the same tree as a single clean checkout.
func (c *Client) Checkout(ctx context.Context, dir, commit string) error {
	checkout := c.command(dir, c.checkoutTimeout,
		"-c", "advice.detachedHead=false", "checkout", "--force", "--quiet", commit, "--")
	clean := c.command(dir, c.checkoutTimeout, "clean", "-ffdxq")

	err := c.run(ctx, OpCheckout, nil, checkout, clean)
	if err != nil {
		if IsUnknownRevision(err) {
			return fmt.Errorf("checkout %s: %w: %w", commit, ErrUnknownRevision, err)
		}

		return fmt.Errorf("checkout %s: %w", commit, err)
	}

	return nil
}

// Fetch retrieves a single commit (without blobs) from origin, for commits
// not reachable from the cloned refs.
func (c *Client) Fetch(ctx context.Context, dir, commit string) error {
	cmd := c.command(dir, c.cloneTimeout, "fetch", "--filter=blob:none", "--quiet", "origin", commit)

	err := c.run(ctx, OpFetch, nil, cmd)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", commit, err)
	}

	return nil
}

// Head returns the commit checked out in dir.
func (c *Client) Head(ctx context.Context, dir string) (string, error) {
	out, err := c.runner.Run(ctx, c.command(dir, c.checkoutTimeout, "rev-parse", "HEAD"))
	if err != nil {
		return "", fmt.Errorf("rev-parse HEAD: %w", err)
	}

	return strings.TrimSpace(string(out.Stdout)), nil
}

// SparseClone shallow-clones remote into ws and materializes only paths.
func (c *Client) SparseClone(ctx context.Context, remote string, ws Workspace, paths ...string) error {
	clone := c.command("", c.cloneTimeout,
		"clone", "--depth=1", "--filter=blob:none", "--sparse", "--quiet", "--", remote, ws.Path())
	set := c.command(ws.Path(), c.cloneTimeout,
		append([]string{"sparse-checkout", "set", "--no-cone"}, paths...)...)

	err := c.run(ctx, OpSparse, resetBefore(ws), clone, set)
	if err != nil {
		return fmt.Errorf("sparse clone %s: %w", RedactURL(remote), err)
	}

	return nil
}

func (c *Client) command(dir string, timeout time.Duration, args ...string) process.Command {
	return process.Command{
		Name:    c.binary,
		Args:    args,
		Dir:     dir,
		Env:     []string{"GIT_TERMINAL_PROMPT=0", "GIT_LFS_SKIP_SMUDGE=1"},
		Timeout: timeout,
	}
}

func (c *Client) run(
	ctx context.Context, op string, before func(context.Context, int) error, cmds ...process.Command,
) error {
	runner := &process.RetryRunner{
		Runner:        c.runner,
		Policy:        c.policy,
		Classify:      Classify,
		BeforeAttempt: before,
		Logger:        c.logger,
		OnRetry: func(cmd process.Command, attempt int, err error, wait time.Duration) {
			c.metrics.RecordRetry(ctx, op)
			c.logger.WarnContext(ctx, "git operation failed, retrying",
				"op", op, "attempt", attempt, "wait", wait, "error", err)
		},
	}

	start := time.Now()
	_, err := runner.Run(ctx, cmds...)
	c.metrics.RecordGit(ctx, op, time.Since(start), err)

	return err
}

func resetBefore(ws Workspace) func(context.Context, int) error {
	return func(_ context.Context, attempt int) error {
		if attempt == 1 {
			return nil
		}

		err := ws.Reset()
		if err != nil {
			return fmt.Errorf("reset workspace before attempt %d: %w", attempt, err)
		}

		return nil
	}
}

// IsStructural reports whether err is a git failure that retrying cannot fix.
func IsStructural(err error) bool {
	return errors.Is(err, ErrUnknownRevision) || classifyErr(err) == process.Structural
}
