package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

const reportTitle = "Benchmark Complexity Report"

// WriteMarkdown renders the full report: a summary table over all
// benchmarks followed by one section per benchmark.
func WriteMarkdown(w io.Writer, benchmarks []Benchmark) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", reportTitle)
	sb.WriteString("Complexity of tasks across SWE benchmark datasets: repository size, code per language and golden patch size.\n\n")

	sb.WriteString("## Summary\n\n")
	sb.WriteString(summaryTable(benchmarks).RenderMarkdown())
	sb.WriteString("\n\n")

	for _, b := range benchmarks {
		fmt.Fprintf(&sb, "## %s\n\n**Task Count:** %d\n\n", b.Name, b.TaskCount)

		for _, section := range []struct {
			title string
			tbl   table.Writer
		}{
			{"Repository Size Stats (Total LOC)", repoSizeTable(b)},
			{"LOC Stats by Language", locByLanguageTable(b)},
			{"Patch Complexity by Primary Language", patchByLanguageTable(b, "/")},
			{"Overall Patch Complexity", patchOverallTable(b)},
			{"Repositories", repositoriesTable(b)},
		} {
			fmt.Fprintf(&sb, "### %s\n\n%s\n\n", section.title, section.tbl.RenderMarkdown())
		}
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}

	return nil
}

func summaryTable(benchmarks []Benchmark) table.Writer {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Benchmark", "Tasks", "Repo LOC (mean)", "Patch Total (mean)", "Patch Total (median)"})

	for _, b := range benchmarks {
		tbl.AppendRow(table.Row{
			b.Name,
			b.TaskCount,
			FormatNumber(b.RepoSize.Mean),
			fixed(b.PatchOverall.Total.Mean, 1),
			fixed(b.PatchOverall.Total.Median, 0),
		})
	}

	return tbl
}
