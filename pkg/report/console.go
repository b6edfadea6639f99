package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

const ruleWidth = 70

// WriteConsole prints the report of each benchmark as boxed tables.
func WriteConsole(w io.Writer, benchmarks []Benchmark) error {
	for _, b := range benchmarks {
		if err := writeBenchmarkConsole(w, b); err != nil {
			return err
		}
	}

	return nil
}

func writeBenchmarkConsole(w io.Writer, b Benchmark) error {
	rule := strings.Repeat("=", ruleWidth)
	_, err := fmt.Fprintf(w, "\n%s\n  Benchmark: %s\n%s\n\nTask Count: %s\n",
		rule, b.Name, rule, humanize.Comma(int64(b.TaskCount)))
	if err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	for _, section := range []struct {
		title string
		tbl   table.Writer
	}{
		{"Repository Size Stats (Total LOC)", repoSizeTable(b)},
		{"LOC Stats by Language", locByLanguageTable(b)},
		{"Patch Complexity by Primary Language", patchByLanguageTable(b, " / ")},
		{"Overall Patch Complexity", patchOverallTable(b)},
	} {
		_, err = fmt.Fprintf(w, "\n--- %s ---\n%s\n", section.title, section.tbl.Render())
		if err != nil {
			return fmt.Errorf("write %s: %w", section.title, err)
		}
	}

	return nil
}
