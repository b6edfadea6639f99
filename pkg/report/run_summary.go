package report

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/locbench/pkg/framework"
)

// SkippedTask is a task that produced no measurement.
type SkippedTask struct {
	ID     string `yaml:"instance_id"`
	Repo   string `yaml:"repo"`
	Commit string `yaml:"commit"`
	Stage  string `yaml:"stage"`
	Reason string `yaml:"reason"`
}

// RunSummary describes the outcome of one analysis run.
type RunSummary struct {
	RunID       string         `yaml:"run_id"`
	EvalSet     string         `yaml:"eval_set"`
	Output      string         `yaml:"output,omitempty"`
	StartedAt   time.Time      `yaml:"started_at"`
	Duration    time.Duration  `yaml:"duration"`
	Repos       int            `yaml:"repos"`
	FailedRepos int            `yaml:"failed_repos"`
	Tasks       int            `yaml:"tasks"`
	Measured    int            `yaml:"measured"`
	Missing     int            `yaml:"missing"`
	ByStage     map[string]int `yaml:"missing_by_stage,omitempty"`
	Skipped     []SkippedTask  `yaml:"skipped,omitempty"`
}

// NewRunSummary builds the summary of a finished run.
func NewRunSummary(runID, evalSet string, started time.Time, out framework.Outcome) RunSummary {
	s := RunSummary{
		RunID:       runID,
		EvalSet:     evalSet,
		StartedAt:   started,
		Duration:    out.Stats.Duration,
		Repos:       out.Stats.Repos,
		FailedRepos: out.Stats.FailedRepos + out.Stats.LostRepos,
		Tasks:       len(out.Rows),
		Measured:    out.Stats.Measured,
		Missing:     out.MissingCount(),
	}

	if len(out.Missing) > 0 {
		s.ByStage = map[string]int{}
	}

	for _, m := range out.Missing {
		s.ByStage[m.Stage]++
		s.Skipped = append(s.Skipped, SkippedTask{
			ID:     m.Task.ID,
			Repo:   m.Task.Repo,
			Commit: m.Task.Commit,
			Stage:  m.Stage,
			Reason: m.Reason,
		})
	}

	return s
}

// Complete reports whether every task was measured.
func (s RunSummary) Complete() bool { return s.Missing == 0 }

// Render prints totals, missing counts per stage and the skipped tasks.
func (s RunSummary) Render(w io.Writer) error {
	status := color.New(color.FgGreen).Sprint("complete")
	if !s.Complete() {
		status = color.New(color.FgYellow).Sprintf("%d missing", s.Missing)
	}

	totals := newTable()
	totals.SetTitle("Run " + s.RunID)
	totals.AppendRows([]table.Row{
		{"Eval set", s.EvalSet},
		{"Status", status},
		{"Repositories", humanize.Comma(int64(s.Repos))},
		{"Failed repositories", humanize.Comma(int64(s.FailedRepos))},
		{"Tasks", humanize.Comma(int64(s.Tasks))},
		{"Measured", humanize.Comma(int64(s.Measured))},
		{"Missing", humanize.Comma(int64(s.Missing))},
		{"Duration", s.Duration.Round(time.Second).String()},
		{"Started", humanize.Time(s.StartedAt)},
	})

	if s.Output != "" {
		totals.AppendRow(table.Row{"Output", s.Output})
	}

	if _, err := fmt.Fprintln(w, totals.Render()); err != nil {
		return fmt.Errorf("write run summary: %w", err)
	}

	if s.Complete() {
		return nil
	}

	if _, err := fmt.Fprintln(w, s.stageTable().Render()); err != nil {
		return fmt.Errorf("write missing stages: %w", err)
	}

	if _, err := fmt.Fprintln(w, s.skippedTable().Render()); err != nil {
		return fmt.Errorf("write skipped tasks: %w", err)
	}

	return nil
}

func (s RunSummary) stageTable() table.Writer {
	stages := slices.SortedFunc(maps.Keys(s.ByStage), func(a, b string) int {
		return cmp.Or(cmp.Compare(s.ByStage[b], s.ByStage[a]), cmp.Compare(a, b))
	})

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Stage", "Missing"})

	for _, stage := range stages {
		tbl.AppendRow(table.Row{color.New(color.FgRed).Sprint(stage), s.ByStage[stage]})
	}

	alignRight(tbl, 2, 2)

	return tbl
}

func (s RunSummary) skippedTable() table.Writer {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Task", "Repository", "Commit", "Stage", "Reason"})

	for _, sk := range s.Skipped {
		tbl.AppendRow(table.Row{sk.ID, sk.Repo, shortCommit(sk.Commit), sk.Stage, sk.Reason})
	}

	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 5, WidthMax: reasonWidth}})

	return tbl
}

const (
	reasonWidth = 80
	shortSHA    = 12
)

func shortCommit(sha string) string {
	if len(sha) > shortSHA {
		return sha[:shortSHA]
	}

	return sha
}

// WriteYAML writes the summary as a YAML document.
func (s RunSummary) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}

	return nil
}
