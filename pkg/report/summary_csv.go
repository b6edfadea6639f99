package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/Sumatoshi-tech/locbench/pkg/stats"
)

// topLanguages is how many languages the summary CSV lists per benchmark.
const topLanguages = 3

// SummaryHeader returns the columns of complexity_summary.csv.
func SummaryHeader() []string {
	header := []string{"benchmark", "task_count"}
	header = append(header, summaryColumns("repo_loc", true)...)

	for _, kind := range []string{"added", "deleted", "total"} {
		header = append(header, summaryColumns("patch_"+kind, false)...)
	}

	for i := 1; i <= topLanguages; i++ {
		header = append(header,
			fmt.Sprintf("top%d_language", i),
			fmt.Sprintf("top%d_tasks", i),
			fmt.Sprintf("top%d_loc_mean", i),
		)
	}

	return header
}

func summaryColumns(prefix string, quartiles bool) []string {
	if quartiles {
		return []string{
			prefix + "_mean", prefix + "_median", prefix + "_std", prefix + "_min",
			prefix + "_25pct", prefix + "_75pct", prefix + "_max",
		}
	}

	return []string{prefix + "_mean", prefix + "_median", prefix + "_std", prefix + "_min", prefix + "_max"}
}

func summaryValues(s stats.Summary, quartiles bool) []string {
	if quartiles {
		return []string{
			csvFloat(s.Mean), csvFloat(s.Median), csvFloat(s.Std), csvFloat(s.Min),
			csvFloat(s.P25), csvFloat(s.P75), csvFloat(s.Max),
		}
	}

	return []string{csvFloat(s.Mean), csvFloat(s.Median), csvFloat(s.Std), csvFloat(s.Min), csvFloat(s.Max)}
}

// WriteSummaryCSV writes one row of key statistics per benchmark. Benchmarks
// with fewer than three languages leave the remaining top-language cells empty.
func WriteSummaryCSV(w io.Writer, benchmarks []Benchmark) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(SummaryHeader()); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}

	for _, b := range benchmarks {
		row := []string{b.Name, strconv.Itoa(b.TaskCount)}
		row = append(row, summaryValues(b.RepoSize, true)...)
		row = append(row, summaryValues(b.PatchOverall.Added, false)...)
		row = append(row, summaryValues(b.PatchOverall.Deleted, false)...)
		row = append(row, summaryValues(b.PatchOverall.Total, false)...)

		for i := range topLanguages {
			if i >= len(b.LOCByLanguage) {
				row = append(row, "", "", "")

				continue
			}

			l := b.LOCByLanguage[i]
			row = append(row, l.Language, strconv.Itoa(l.TasksWithCode), csvFloat(l.LOC.Mean))
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write summary row %s: %w", b.Name, err)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush summary: %w", err)
	}

	return nil
}
