package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/locbench/pkg/stats"
)

// Table builders shared by the console and Markdown renderers.

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)

	return tbl
}

func alignRight(tbl table.Writer, from, to int) {
	configs := make([]table.ColumnConfig, 0, to-from+1)
	for n := from; n <= to; n++ {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}

	tbl.SetColumnConfigs(configs)
}

func repoSizeTable(b Benchmark) table.Writer {
	s := b.RepoSize

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Mean", FormatNumber(s.Mean)},
		{"Median", FormatNumber(s.Median)},
		{"Std Dev", FormatNumber(s.Std)},
		{"Min", FormatNumber(s.Min)},
		{"25th Percentile", FormatNumber(s.P25)},
		{"75th Percentile", FormatNumber(s.P75)},
		{"Max", FormatNumber(s.Max)},
	})
	alignRight(tbl, 2, 2)

	return tbl
}

func locByLanguageTable(b Benchmark) table.Writer {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Language", "Tasks w/ Code", "Mean", "Median", "Std", "Min", "Max"})

	for _, l := range b.LOCByLanguage {
		tbl.AppendRow(table.Row{
			l.Language,
			humanize.Comma(int64(l.TasksWithCode)),
			FormatNumber(l.LOC.Mean),
			FormatNumber(l.LOC.Median),
			FormatNumber(l.LOC.Std),
			FormatNumber(l.LOC.Min),
			FormatNumber(l.LOC.Max),
		})
	}

	alignRight(tbl, 2, 7)

	return tbl
}

func patchByLanguageTable(b Benchmark, sep string) table.Writer {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Primary Language", "Tasks", "Added (mean/median)", "Deleted (mean/median)", "Total (mean/median)"})

	for _, p := range b.PatchByLanguage {
		tbl.AppendRow(table.Row{
			p.Language,
			humanize.Comma(int64(p.TaskCount)),
			meanMedian(p.Patches.Added.Mean, p.Patches.Added.Median, sep),
			meanMedian(p.Patches.Deleted.Mean, p.Patches.Deleted.Median, sep),
			meanMedian(p.Patches.Total.Mean, p.Patches.Total.Median, sep),
		})
	}

	alignRight(tbl, 2, 5)

	return tbl
}

func patchOverallTable(b Benchmark) table.Writer {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Metric", "Mean", "Median", "Std", "Min", "25%", "75%", "Max"})
	tbl.AppendRows([]table.Row{
		summaryRow("Lines Added", b.PatchOverall.Added),
		summaryRow("Lines Deleted", b.PatchOverall.Deleted),
		summaryRow("Total Changed", b.PatchOverall.Total),
	})
	alignRight(tbl, 2, 8)

	return tbl
}

func summaryRow(name string, s stats.Summary) table.Row {
	return table.Row{
		name, fixed(s.Mean, 1), fixed(s.Median, 0), fixed(s.Std, 1),
		fixed(s.Min, 0), fixed(s.P25, 0), fixed(s.P75, 0), fixed(s.Max, 0),
	}
}

func repositoriesTable(b Benchmark) table.Writer {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Repository", "Main Languages", "Max Repo Size", "Tasks", "Median Complexity"})

	for _, r := range b.Repositories {
		tbl.AppendRow(table.Row{
			r.Name,
			mainLanguagesLabel(r.MainLanguages),
			FormatNumber(float64(r.MaxRepoSize)),
			strconv.Itoa(r.TaskCount),
			fixed(r.MedianComplexity, 0),
		})
	}

	alignRight(tbl, 3, 5)

	return tbl
}

func mainLanguagesLabel(langs []LanguageSize) string {
	if len(langs) == 0 {
		return notAvailable
	}

	parts := make([]string, len(langs))
	for i, l := range langs {
		parts[i] = fmt.Sprintf("%s (%s)", l.Language, FormatNumber(float64(l.LOC)))
	}

	return strings.Join(parts, ", ")
}
