package framework

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/locbench/pkg/task"
)

// Outcome is the reconciled output of a run plus its statistics.
type Outcome struct {
	Reconciliation

	Stats RunStats
}

// Analyze validates tasks, groups them by repository, schedules the groups
// and reconciles the results into the order of tasks.
func Analyze(ctx context.Context, tasks []task.Task, sched *Scheduler) (Outcome, error) {
	err := task.Validate(tasks)
	if err != nil {
		return Outcome{}, fmt.Errorf("validate tasks: %w", err)
	}

	store, stats := sched.Run(ctx, task.GroupByRepo(tasks))
	rec := Reconcile(tasks, store)
	stats.Missing = rec.MissingCount()
	stats.Measured = len(rec.Rows) - stats.Missing

	return Outcome{Reconciliation: rec, Stats: stats}, nil
}
