package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricReposTotal      = "locbench.repos.total"
	metricReposInflight   = "locbench.repos.inflight"
	metricTasksTotal      = "locbench.tasks.total"
	metricGitDuration     = "locbench.git.duration.seconds"
	metricCounterDuration = "locbench.counter.duration.seconds"
	metricRetriesTotal    = "locbench.retries.total"

	attrOutcome = "outcome"
	attrStage   = "stage"
	attrOp      = "op"
	attrStatus  = "status"

	// StageMeasured labels a task that produced a result.
	StageMeasured = "measured"

	statusOK    = "ok"
	statusError = "error"
)

// durationBucketBoundaries covers a quick checkout up to a slow clone of a
// very large repository.
var durationBucketBoundaries = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800}

// PipelineMetrics holds the OTel instruments of the analysis pipeline.
// All methods are safe on a nil receiver.
type PipelineMetrics struct {
	repos           metric.Int64Counter
	reposInflight   metric.Int64UpDownCounter
	tasks           metric.Int64Counter
	gitDuration     metric.Float64Histogram
	counterDuration metric.Float64Histogram
	retries         metric.Int64Counter
}

// NewPipelineMetrics creates pipeline instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	repos, err := mt.Int64Counter(metricReposTotal,
		metric.WithDescription("Repositories processed by outcome"),
		metric.WithUnit("{repository}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricReposTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricReposInflight,
		metric.WithDescription("Repositories currently owned by a worker"),
		metric.WithUnit("{repository}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricReposInflight, err)
	}

	tasks, err := mt.Int64Counter(metricTasksTotal,
		metric.WithDescription("Tasks finished, by stage that ended them"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTasksTotal, err)
	}

	gitDur, err := mt.Float64Histogram(metricGitDuration,
		metric.WithDescription("Duration of git operations including retries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricGitDuration, err)
	}

	counterDur, err := mt.Float64Histogram(metricCounterDuration,
		metric.WithDescription("Duration of one line counter run"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCounterDuration, err)
	}

	retries, err := mt.Int64Counter(metricRetriesTotal,
		metric.WithDescription("Retried attempts of external commands"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRetriesTotal, err)
	}

	return &PipelineMetrics{
		repos:           repos,
		reposInflight:   inflight,
		tasks:           tasks,
		gitDuration:     gitDur,
		counterDuration: counterDur,
		retries:         retries,
	}, nil
}

// RecordRepo counts a finished repository ("ok", "failed" or "lost").
func (pm *PipelineMetrics) RecordRepo(ctx context.Context, outcome string) {
	if pm == nil {
		return
	}

	pm.repos.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}

// TrackRepo increments the in-flight gauge and returns its decrement.
func (pm *PipelineMetrics) TrackRepo(ctx context.Context) func() {
	if pm == nil {
		return func() {}
	}

	pm.reposInflight.Add(ctx, 1)

	return func() { pm.reposInflight.Add(ctx, -1) }
}

// RecordTask counts a finished task under the stage that ended it.
func (pm *PipelineMetrics) RecordTask(ctx context.Context, stage string) {
	if pm == nil {
		return
	}

	pm.tasks.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStage, stage)))
}

// RecordGit records one git operation ("clone", "checkout", "fetch").
func (pm *PipelineMetrics) RecordGit(ctx context.Context, op string, d time.Duration, err error) {
	if pm == nil {
		return
	}

	pm.gitDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status(err)),
	))
}

// RecordCount records one line counter run.
func (pm *PipelineMetrics) RecordCount(ctx context.Context, d time.Duration, err error) {
	if pm == nil {
		return
	}

	pm.counterDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String(attrStatus, status(err)),
	))
}

// RecordRetry counts one retried attempt of op.
func (pm *PipelineMetrics) RecordRetry(ctx context.Context, op string) {
	if pm == nil {
		return
	}

	pm.retries.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
}

func status(err error) string {
	if err != nil {
		return statusError
	}

	return statusOK
}
