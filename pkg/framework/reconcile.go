package framework

import (
	"github.com/Sumatoshi-tech/locbench/pkg/loc"
	"github.com/Sumatoshi-tech/locbench/pkg/task"
)

const reasonNoResult = "no result recorded"

// Row is one output line; Missing rows carry all-zero stats.
type Row struct {
	AnalysisResult

	Missing bool
}

// Reconciliation is the run's output in input order.
type Reconciliation struct {
	Rows    []Row
	Missing []MissingTask
}

// MissingCount returns how many rows were zero-filled.
func (r Reconciliation) MissingCount() int { return len(r.Missing) }

// Reconcile emits one row per task, in the order of tasks. Tasks without a
// result get a zero-filled row and a MissingTask entry, taken from the store
// when the worker recorded a reason. It never fails.
func Reconcile(tasks []task.Task, store *ResultStore) Reconciliation {
	if store == nil {
		store = NewResultStore()
	}

	out := Reconciliation{Rows: make([]Row, 0, len(tasks))}

	for _, tk := range tasks {
		if r, ok := store.Get(tk.ID); ok {
			out.Rows = append(out.Rows, Row{AnalysisResult: withAllLanguages(r)})

			continue
		}

		out.Rows = append(out.Rows, Row{
			AnalysisResult: AnalysisResult{
				TaskID: tk.ID,
				Repo:   tk.Repo,
				Commit: tk.Commit,
				Stats:  loc.ZeroStats(),
			},
			Missing: true,
		})

		m, ok := store.Missing(tk.ID)
		if !ok {
			m = MissingTask{Task: tk, Stage: StageUnknown, Reason: reasonNoResult}
		}

		out.Missing = append(out.Missing, m)
	}

	return out
}

func withAllLanguages(r AnalysisResult) AnalysisResult {
	stats := loc.ZeroStats()
	for _, lang := range loc.Languages {
		stats[lang] = r.Stats[lang]
	}

	r.Stats = stats

	return r
}
