package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/locbench/pkg/observability"
	"github.com/Sumatoshi-tech/locbench/pkg/report"
	"github.com/Sumatoshi-tech/locbench/pkg/sink"
)

// Report file names.
const (
	SummaryCSVName = "complexity_summary.csv"
	MarkdownName   = "complexity_report.md"
	PlotName       = "complexity_plot.html"
)

// ErrNoBenchmarks is returned when the input directory holds no augmented tables.
var ErrNoBenchmarks = errors.New("no *_augmented.csv files found")

type reportOutput struct {
	name  string
	write func(io.Writer, []report.Benchmark) error
}

// ReportCommand holds flags of the report command.
type ReportCommand struct {
	outDir string
	plot   bool
	quiet  bool
}

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	rc := &ReportCommand{}

	cmd := &cobra.Command{
		Use:   "report [dir]",
		Short: "Summarize augmented LOC tables per benchmark",
		Long: `Read every *_augmented.csv in dir (default: current directory) and report,
per benchmark, repository size, LOC by language, golden patch size by primary
language and per-repository statistics. Writes complexity_summary.csv and
complexity_report.md, and optionally complexity_plot.html.`,
		Args: cobra.MaximumNArgs(1),
		RunE: rc.run,
	}

	cmd.Flags().StringVar(&rc.outDir, "out-dir", "reports", "Directory for report files")
	cmd.Flags().BoolVar(&rc.plot, "plot", false, "Also write an HTML chart page")
	cmd.Flags().BoolVarP(&rc.quiet, "quiet", "q", false, "Do not print per-benchmark tables")
	cmd.Flags().String(flagLogLevel, "info", "Log level: debug, info, warn, error")
	cmd.Flags().String(flagLogFormat, "text", "Log format: text, json")

	return cmd
}

func (rc *ReportCommand) run(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd, observability.ModeReport)
	if err != nil {
		return err
	}
	defer env.close()

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	sets, err := report.LoadDir(dir)
	if err != nil {
		return err
	}

	if len(sets) == 0 {
		return fmt.Errorf("%w in %s", ErrNoBenchmarks, dir)
	}

	benchmarks := make([]report.Benchmark, 0, len(sets))
	for _, set := range sets {
		benchmarks = append(benchmarks, report.Analyze(set.Name, set.Data))
	}

	env.logger.Info("loaded benchmarks", "dir", dir, "count", len(benchmarks))

	if !rc.quiet {
		err = report.WriteConsole(cmd.OutOrStdout(), benchmarks)
		if err != nil {
			return err
		}
	}

	err = os.MkdirAll(rc.outDir, 0o755)
	if err != nil {
		return fmt.Errorf("create %s: %w", rc.outDir, err)
	}

	outputs := []reportOutput{
		{SummaryCSVName, report.WriteSummaryCSV},
		{MarkdownName, report.WriteMarkdown},
	}

	if rc.plot {
		outputs = append(outputs, reportOutput{PlotName, report.WritePlot})
	}

	for _, out := range outputs {
		path := filepath.Join(rc.outDir, out.name)

		err = sink.WriteFile(path, func(w io.Writer) error { return out.write(w, benchmarks) })
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
	}

	return nil
}
