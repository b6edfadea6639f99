// Package dataset loads benchmark tasks from the supported evaluation-set
// exports.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/locbench/pkg/task"
)

// Evaluation sets.
const (
	SWEBench      = "swe-bench"
	SWEBenchPro   = "swe-bench-pro"
	MultiSWEBench = "multi-swe-bench"
	SWELancer     = "swe-lancer"
	JSONL         = "jsonl"
)

// Sentinel errors.
var (
	ErrUnknownEvalSet = errors.New("unknown eval set")
	ErrNoPath         = errors.New("dataset path is required")
	ErrNoTasks        = errors.New("dataset contains no tasks")
)

// maxLine bounds one JSONL record; golden patches can be large.
const maxLine = 64 << 20

// EvalSets lists the supported evaluation sets.
func EvalSets() []string {
	return []string{SWEBench, SWEBenchPro, MultiSWEBench, SWELancer, JSONL}
}

// Loader reads tasks of one evaluation set.
type Loader struct {
	EvalSet string
	Path    string
	Logger  *slog.Logger
}

// Load returns the tasks in file order. Malformed records are logged and
// skipped.
func (l *Loader) Load(ctx context.Context) ([]task.Task, error) {
	if !slices.Contains(EvalSets(), l.EvalSet) {
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownEvalSet, l.EvalSet, strings.Join(EvalSets(), ", "))
	}

	if l.Path == "" {
		return nil, fmt.Errorf("%s: %w", l.EvalSet, ErrNoPath)
	}

	var (
		tasks []task.Task
		err   error
	)

	switch l.EvalSet {
	case SWEBench, SWEBenchPro:
		tasks, err = l.loadFile(ctx, l.Path, decodeSWEBench)
	case MultiSWEBench:
		tasks, err = l.loadTree(ctx)
	case SWELancer:
		tasks, err = LoadSWELancer(l.Path)
	case JSONL:
		tasks, err = l.loadFile(ctx, l.Path, decodeGeneric)
	}

	if err != nil {
		return nil, err
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("%s at %s: %w", l.EvalSet, l.Path, ErrNoTasks)
	}

	l.logger().InfoContext(ctx, "dataset loaded", "eval_set", l.EvalSet, "path", l.Path, "tasks", len(tasks))

	return tasks, nil
}

// decodeFunc turns one JSON record into a task.
type decodeFunc func(raw json.RawMessage) (task.Task, error)

func (l *Loader) loadFile(ctx context.Context, path string, decode decodeFunc) ([]task.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	return l.decodeRecords(ctx, path, f, decode)
}

// decodeRecords accepts a JSON array or JSON Lines.
func (l *Loader) decodeRecords(ctx context.Context, name string, r io.Reader, decode decodeFunc) ([]task.Task, error) {
	br := bufio.NewReader(r)

	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	if first == '[' {
		return l.decodeArray(ctx, name, br, decode)
	}

	return l.decodeLines(ctx, name, br, decode)
}

func (l *Loader) decodeArray(ctx context.Context, name string, r io.Reader, decode decodeFunc) ([]task.Task, error) {
	var records []json.RawMessage

	err := json.NewDecoder(r).Decode(&records)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	tasks := make([]task.Task, 0, len(records))

	for i, raw := range records {
		t, decErr := decode(raw)
		if decErr != nil {
			l.logger().WarnContext(ctx, "skipping malformed record", "file", name, "index", i, "error", decErr)

			continue
		}

		tasks = append(tasks, t)
	}

	return tasks, nil
}

func (l *Loader) decodeLines(ctx context.Context, name string, r io.Reader, decode decodeFunc) ([]task.Task, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), maxLine)

	var tasks []task.Task

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		t, err := decode(json.RawMessage(line))
		if err != nil {
			l.logger().WarnContext(ctx, "skipping malformed record", "file", name, "line", lineNo, "error", err)

			continue
		}

		tasks = append(tasks, t)
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", name, err)
	}

	return tasks, nil
}

// loadTree walks Path for *.jsonl files in lexical order.
func (l *Loader) loadTree(ctx context.Context) ([]task.Task, error) {
	var tasks []task.Task

	err := filepath.WalkDir(l.Path, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
			return nil
		}

		l.logger().DebugContext(ctx, "reading dataset file", "file", path)

		fileTasks, err := l.loadFile(ctx, path, decodeMultiSWEBench)
		if err != nil {
			return err
		}

		tasks = append(tasks, fileTasks...)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", l.Path, err)
	}

	return tasks, nil
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}

	return l.Logger
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}

		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}

		return b, br.UnreadByte()
	}
}

// Patches maps task ids to their golden patches, skipping empty ones.
func Patches(tasks []task.Task) map[string]string {
	out := make(map[string]string, len(tasks))
	for _, t := range tasks {
		if t.Patch != "" {
			out[t.ID] = t.Patch
		}
	}

	return out
}
