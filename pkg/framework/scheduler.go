package framework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/locbench/pkg/observability"
	"github.com/Sumatoshi-tech/locbench/pkg/stats"
	"github.com/Sumatoshi-tech/locbench/pkg/task"
)

// DefaultConcurrency is the number of repositories processed at once.
const DefaultConcurrency = 8

// etaSmoothing weights the latest repository duration in the ETA estimate.
const etaSmoothing = 0.2

// RunStats summarizes one scheduler run.
type RunStats struct {
	Repos       int
	FailedRepos int
	LostRepos   int
	Tasks       int
	Measured    int
	Missing     int
	Duration    time.Duration
}

// Scheduler runs a Processor over repository groups with bounded
// parallelism. Batches are funneled to a single collector that owns the
// ResultStore writes.
type Scheduler struct {
	Processor   Processor
	Concurrency int

	// OnBatch observes each batch after it is stored, from the collector goroutine.
	OnBatch func(b Batch, done, total int)

	Metrics *observability.PipelineMetrics
	Logger  *slog.Logger
}

// Run processes every group and returns once each one has produced a batch.
// Cancelling ctx makes the remaining groups report their tasks as canceled.
func (s *Scheduler) Run(ctx context.Context, groups []task.Group) (*ResultStore, RunStats) {
	start := time.Now()
	lg := s.Logger
	if lg == nil {
		lg = slog.Default()
	}

	workers := s.Concurrency
	if workers < 1 {
		workers = DefaultConcurrency
	}

	workers = min(workers, len(groups))

	jobs := make(chan task.Group)
	batches := make(chan Batch, workers)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for g := range jobs {
				batches <- s.safeProcess(ctx, lg, g)
			}
		}()
	}

	go func() {
		defer close(jobs)

		for _, g := range groups {
			jobs <- g
		}
	}()

	go func() {
		wg.Wait()
		close(batches)
	}()

	store := NewResultStore()
	runStats := RunStats{Repos: len(groups), Tasks: task.Count(groups)}
	repoTime := stats.NewEMA(etaSmoothing)
	done := 0

	for b := range batches {
		done++

		err := store.AddBatch(b)
		if err != nil {
			lg.ErrorContext(ctx, "conflicting results dropped", "repo", b.Repo, "error", err)
		}

		switch {
		case errors.Is(b.Err, ErrWorkerPanic):
			runStats.LostRepos++
		case b.Err != nil:
			runStats.FailedRepos++
		}

		avg := repoTime.Update(b.Duration.Seconds())
		eta := time.Duration(avg * float64(len(groups)-done) / float64(workers) * float64(time.Second))

		lg.InfoContext(ctx, "repository finished",
			"repo", b.Repo,
			"measured", len(b.Results),
			"missing", len(b.Missing),
			"elapsed", b.Duration.Round(time.Millisecond),
			"progress", fmt.Sprintf("%d/%d", done, len(groups)),
			"eta", eta.Round(time.Second),
		)

		if s.OnBatch != nil {
			s.OnBatch(b, done, len(groups))
		}
	}

	runStats.Measured, runStats.Missing = store.Counts()
	runStats.Duration = time.Since(start)

	return store, runStats
}

func (s *Scheduler) safeProcess(ctx context.Context, lg *slog.Logger, g task.Group) (b Batch) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		lg.ErrorContext(ctx, "repository worker panicked",
			"repo", g.Repo, "panic", r, "stack", string(debug.Stack()))
		s.Metrics.RecordRepo(ctx, outcomeLost)

		b = lostBatch(g, StageWorker, fmt.Errorf("%w: %v", ErrWorkerPanic, r))
	}()

	return s.Processor.Process(ctx, g)
}
