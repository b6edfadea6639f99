// Package framework runs the per-repository analysis pipeline: one clone per
// repository, sequential checkouts of its commits, bounded parallelism across
// repositories and reconciliation of the results into input order.
package framework

import (
	"errors"
	"time"

	"github.com/Sumatoshi-tech/locbench/pkg/loc"
	"github.com/Sumatoshi-tech/locbench/pkg/task"
)

// Stages at which a task can be lost.
const (
	StageRemote   = "remote"
	StageWorkdir  = "workdir"
	StageClone    = "clone"
	StageCheckout = "checkout"
	StageMeasure  = "measure"
	StageCanceled = "canceled"
	StageWorker   = "worker"
	StageUnknown  = "unknown"
)

// ErrWorkerPanic wraps a recovered panic of a repository worker.
var ErrWorkerPanic = errors.New("repository worker panicked")

// AnalysisResult is the measurement of one task.
type AnalysisResult struct {
	TaskID string
	Repo   string
	Commit string
	Stats  loc.Stats
}

// MissingTask records why a task produced no result.
type MissingTask struct {
	Task   task.Task
	Stage  string
	Reason string
}

// Batch is everything one repository worker produced.
type Batch struct {
	Repo     string
	Results  []AnalysisResult
	Missing  []MissingTask
	Duration time.Duration

	// Err is set when the repository as a whole was given up.
	Err error
}

func (b *Batch) miss(tk task.Task, stage string, err error) {
	reason := "unknown"
	if err != nil {
		reason = err.Error()
	}

	b.Missing = append(b.Missing, MissingTask{Task: tk, Stage: stage, Reason: reason})
}

func (b *Batch) missAll(tasks []task.Task, stage string, err error) {
	for _, tk := range tasks {
		b.miss(tk, stage, err)
	}
}

// lostBatch reports every task of g as missing at stage.
func lostBatch(g task.Group, stage string, err error) Batch {
	b := Batch{Repo: g.Repo, Err: err}
	b.missAll(g.Tasks, stage, err)

	return b
}
