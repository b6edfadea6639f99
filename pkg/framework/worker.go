package framework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/Sumatoshi-tech/locbench/pkg/gitlib"
	"github.com/Sumatoshi-tech/locbench/pkg/loc"
	"github.com/Sumatoshi-tech/locbench/pkg/observability"
	"github.com/Sumatoshi-tech/locbench/pkg/task"
	"github.com/Sumatoshi-tech/locbench/pkg/workdir"
)

// Repo outcomes reported to metrics.
const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
	outcomeLost   = "lost"
)

// Git is the version-control surface a RepoWorker needs.
type Git interface {
	Clone(ctx context.Context, remote string, ws gitlib.Workspace) error
	Checkout(ctx context.Context, dir, commit string) error
	Fetch(ctx context.Context, dir, commit string) error
}

// Counter measures a checked-out tree.
type Counter interface {
	Measure(ctx context.Context, dir string) (loc.Stats, error)
}

// Processor turns one repository group into a batch. It must report every
// task of the group either as a result or as missing.
type Processor interface {
	Process(ctx context.Context, g task.Group) Batch
}

// RepoWorker owns one repository at a time: it acquires a work directory,
// clones once, then checks out and measures each task in group order. The
// directory is released on every exit path.
type RepoWorker struct {
	Git     Git
	Counter Counter
	Dirs    *workdir.Manager

	// RemoteTemplate expands "org/name" into a remote; see gitlib.RemoteURL.
	RemoteTemplate string

	// FetchMissing fetches a commit the clone does not contain, then retries
	// its checkout once.
	FetchMissing bool

	// CloneLimiter paces clone starts across all workers. Nil disables pacing.
	CloneLimiter *rate.Limiter

	Tracer  trace.Tracer
	Metrics *observability.PipelineMetrics
	Logger  *slog.Logger
}

// Process runs the repository state machine for g.
func (w *RepoWorker) Process(ctx context.Context, g task.Group) Batch {
	start := time.Now()

	ctx = observability.WithRepo(ctx, g.Repo)
	ctx, span := w.tracer().Start(ctx, "locbench.repo", trace.WithAttributes(
		attribute.String("repo.name", g.Repo),
		attribute.Int("repo.tasks", len(g.Tasks)),
	))
	defer span.End()

	defer w.Metrics.TrackRepo(ctx)()

	batch := w.process(ctx, g)
	batch.Duration = time.Since(start)

	outcome := outcomeOK
	if batch.Err != nil {
		outcome = outcomeFailed

		span.RecordError(batch.Err)
		span.SetStatus(codes.Error, "repository failed")
	}

	span.SetAttributes(
		attribute.Int("repo.measured", len(batch.Results)),
		attribute.Int("repo.missing", len(batch.Missing)),
	)
	w.Metrics.RecordRepo(ctx, outcome)

	return batch
}

func (w *RepoWorker) process(ctx context.Context, g task.Group) Batch {
	batch := Batch{Repo: g.Repo}
	lg := w.logger()

	if err := ctx.Err(); err != nil {
		return w.giveUp(ctx, batch, g.Tasks, StageCanceled, err)
	}

	remote, err := gitlib.RemoteURL(w.RemoteTemplate, g.Repo)
	if err != nil {
		return w.giveUp(ctx, batch, g.Tasks, StageRemote, err)
	}

	dir, err := w.Dirs.Acquire(g.Repo)
	if err != nil {
		return w.giveUp(ctx, batch, g.Tasks, StageWorkdir, err)
	}

	defer func() {
		relErr := dir.Release()
		if relErr != nil {
			lg.WarnContext(ctx, "work directory not removed", "path", dir.Path(), "error", relErr)
		}
	}()

	if w.CloneLimiter != nil {
		err = w.CloneLimiter.Wait(ctx)
		if err != nil {
			return w.giveUp(ctx, batch, g.Tasks, StageCanceled, err)
		}
	}

	lg.DebugContext(ctx, "cloning", "dir", dir.Path(), "tasks", len(g.Tasks))

	err = w.Git.Clone(ctx, remote, dir)
	if err != nil {
		lg.WarnContext(ctx, "clone failed, skipping repository",
			"tasks", len(g.Tasks), "permanent", gitlib.IsStructural(err), "error", err)

		return w.giveUp(ctx, batch, g.Tasks, StageClone, err)
	}

	for i, tk := range g.Tasks {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return w.giveUp(ctx, batch, g.Tasks[i:], StageCanceled, ctxErr)
		}

		res, stage, taskErr := w.processTask(ctx, dir.Path(), tk)
		if taskErr == nil {
			batch.Results = append(batch.Results, res)
			w.Metrics.RecordTask(ctx, observability.StageMeasured)

			continue
		}

		if errors.Is(taskErr, loc.ErrPrecondition) {
			lg.ErrorContext(ctx, "work directory unusable, aborting repository", "task", tk.ID, "error", taskErr)

			return w.giveUp(ctx, batch, g.Tasks[i:], stage, taskErr)
		}

		lg.WarnContext(ctx, "task skipped", "task", tk.ID, "commit", tk.Commit, "stage", stage,
			"permanent", gitlib.IsStructural(taskErr), "error", taskErr)
		batch.miss(tk, stage, taskErr)
		w.Metrics.RecordTask(ctx, stage)
	}

	return batch
}

func (w *RepoWorker) processTask(ctx context.Context, dir string, tk task.Task) (AnalysisResult, string, error) {
	ctx = observability.WithTask(ctx, tk.ID)
	ctx, span := w.tracer().Start(ctx, "locbench.task", trace.WithAttributes(
		attribute.String("task.id", tk.ID),
		attribute.String("task.commit", tk.Commit),
	))
	defer span.End()

	fail := func(stage string, err error) (AnalysisResult, string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		span.SetAttributes(attribute.String("error.type", stage))

		return AnalysisResult{}, stage, err
	}

	err := w.checkout(ctx, dir, tk.Commit)
	if err != nil {
		return fail(StageCheckout, err)
	}

	start := time.Now()
	stats, err := w.Counter.Measure(ctx, dir)
	w.Metrics.RecordCount(ctx, time.Since(start), err)

	if err != nil {
		return fail(StageMeasure, err)
	}

	span.SetAttributes(attribute.Int64("counter.code_lines", stats.Total()))

	return AnalysisResult{TaskID: tk.ID, Repo: tk.Repo, Commit: tk.Commit, Stats: stats}, "", nil
}

func (w *RepoWorker) checkout(ctx context.Context, dir, commit string) error {
	err := w.Git.Checkout(ctx, dir, commit)
	if err == nil || !w.FetchMissing || !gitlib.IsUnknownRevision(err) {
		return err
	}

	w.logger().DebugContext(ctx, "commit not in clone, fetching", "commit", commit)

	fetchErr := w.Git.Fetch(ctx, dir, commit)
	if fetchErr != nil {
		return fmt.Errorf("%w (fetch: %w)", err, fetchErr)
	}

	return w.Git.Checkout(ctx, dir, commit)
}

func (w *RepoWorker) giveUp(ctx context.Context, batch Batch, tasks []task.Task, stage string, err error) Batch {
	batch.Err = fmt.Errorf("%s: %w", stage, err)
	batch.missAll(tasks, stage, err)

	for range tasks {
		w.Metrics.RecordTask(ctx, stage)
	}

	return batch
}

func (w *RepoWorker) tracer() trace.Tracer {
	if w.Tracer == nil {
		return nooptrace.NewTracerProvider().Tracer(observability.TracerName)
	}

	return w.Tracer
}

func (w *RepoWorker) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}

	return w.Logger
}
