// Package loc measures code lines of a checked-out tree with an external
// counter (scc) and normalizes its report into a fixed language set.
package loc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/locbench/pkg/process"
)

// Precondition errors. Each one is also wrapped with ErrPrecondition.
var (
	ErrPrecondition = errors.New("counter precondition violated")
	ErrDirNotFound  = errors.New("directory does not exist")
	ErrNotDirectory = errors.New("path is not a directory")
	ErrDirEmpty     = errors.New("directory is empty")
)

// ErrInvalidOutput is wrapped by ToolInvocationError when the report cannot be parsed.
var ErrInvalidOutput = errors.New("unparsable counter output")

// DefaultBinary is the counter looked up on PATH.
const DefaultBinary = "scc"

// Tree measured by Check.
const (
	sampleFile   = "main.go"
	sampleSource = "package main\n\nfunc main() {}\n"
)

// outputSchema accepts the subset of scc's JSON report the adapter relies on.
const outputSchema = `{
  "type": ["array", "null"],
  "items": {
    "type": "object",
    "required": ["Name", "Code"],
    "properties": {
      "Name": {"type": "string"},
      "Code": {"type": "integer", "minimum": 0}
    }
  }
}`

// ToolInvocationError reports a counter that is missing, crashed or printed
// something that is not a language report.
type ToolInvocationError struct {
	Tool string
	Err  error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("line counter %s: %v", e.Tool, e.Err)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// Counter runs the line counter against a directory.
type Counter struct {
	binary  string
	args    []string
	timeout time.Duration
	runner  process.Runner
	schema  *gojsonschema.Schema
}

// Option configures a Counter.
type Option func(*Counter)

// WithBinary overrides the counter executable.
func WithBinary(binary string) Option {
	return func(c *Counter) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithArgs appends extra arguments before the target directory.
func WithArgs(args ...string) Option {
	return func(c *Counter) { c.args = append(c.args, args...) }
}

// WithTimeout bounds one counter run.
func WithTimeout(d time.Duration) Option {
	return func(c *Counter) { c.timeout = d }
}

// WithRunner replaces the process runner, mostly for tests.
func WithRunner(r process.Runner) Option {
	return func(c *Counter) { c.runner = r }
}

// NewCounter builds a Counter. It fails only if the embedded schema is broken.
func NewCounter(opts ...Option) (*Counter, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(outputSchema))
	if err != nil {
		return nil, fmt.Errorf("compile counter output schema: %w", err)
	}

	c := &Counter{
		binary: DefaultBinary,
		runner: process.ExecRunner{},
		schema: schema,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Binary returns the configured executable name.
func (c *Counter) Binary() string { return c.binary }

// Check verifies once, before any work is scheduled, that the counter runs
// and that its report on a one-file Go tree parses. It returns the version
// line the tool printed.
func (c *Counter) Check(ctx context.Context) (string, error) {
	out, err := c.runner.Run(ctx, process.Command{Name: c.binary, Args: []string{"--version"}, Timeout: c.timeout})
	if err != nil {
		return "", &ToolInvocationError{Tool: c.binary, Err: err}
	}

	sample, err := os.MkdirTemp("", "locbench-check-*")
	if err != nil {
		return "", fmt.Errorf("create counter sample: %w", err)
	}
	defer os.RemoveAll(sample)

	err = os.WriteFile(filepath.Join(sample, sampleFile), []byte(sampleSource), 0o600)
	if err != nil {
		return "", fmt.Errorf("create counter sample: %w", err)
	}

	_, err = c.Measure(ctx, sample)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(out.Stdout)), nil
}

// Measure counts code lines under dir. The directory must exist, be a
// directory and contain at least one entry.
func (c *Counter) Measure(ctx context.Context, dir string) (Stats, error) {
	err := checkDir(dir)
	if err != nil {
		return nil, err
	}

	args := append([]string{"--format", "json"}, c.args...)
	args = append(args, dir)

	out, err := c.runner.Run(ctx, process.Command{Name: c.binary, Args: args, Timeout: c.timeout})
	if err != nil {
		return nil, &ToolInvocationError{Tool: c.binary, Err: err}
	}

	entries, err := c.parse(out.Stdout)
	if err != nil {
		return nil, &ToolInvocationError{Tool: c.binary, Err: err}
	}

	return Normalize(entries), nil
}

func (c *Counter) parse(raw []byte) ([]Entry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrInvalidOutput)
	}

	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidOutput, strings.Join(msgs, "; "))
	}

	var entries []Entry

	err = json.Unmarshal(raw, &entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}

	return entries, nil
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w: %s", ErrPrecondition, ErrDirNotFound, dir)
		}

		return fmt.Errorf("%w: stat %s: %w", ErrPrecondition, dir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %w: %s", ErrPrecondition, ErrNotDirectory, dir)
	}

	f, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrPrecondition, dir, err)
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w: %s", ErrPrecondition, ErrDirEmpty, dir)
	}

	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrPrecondition, dir, err)
	}

	return nil
}
