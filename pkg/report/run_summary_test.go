package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/locbench/pkg/framework"
	"github.com/Sumatoshi-tech/locbench/pkg/loc"
	"github.com/Sumatoshi-tech/locbench/pkg/report"
	"github.com/Sumatoshi-tech/locbench/pkg/task"
)

func demoOutcome() framework.Outcome {
	missing := []framework.MissingTask{
		{Task: task.Task{ID: "b1", Repo: "p/q", Commit: "0123456789abcdef0123"}, Stage: framework.StageClone, Reason: "repository not found"},
		{Task: task.Task{ID: "b2", Repo: "p/q", Commit: "fedcba"}, Stage: framework.StageClone, Reason: "repository not found"},
		{Task: task.Task{ID: "c1", Repo: "r/s", Commit: "aa"}, Stage: framework.StageCheckout, Reason: "bad object"},
	}

	rows := []framework.Row{
		{AnalysisResult: framework.AnalysisResult{TaskID: "a1", Stats: loc.ZeroStats()}},
		{AnalysisResult: framework.AnalysisResult{TaskID: "b1", Stats: loc.ZeroStats()}, Missing: true},
		{AnalysisResult: framework.AnalysisResult{TaskID: "b2", Stats: loc.ZeroStats()}, Missing: true},
		{AnalysisResult: framework.AnalysisResult{TaskID: "c1", Stats: loc.ZeroStats()}, Missing: true},
	}

	return framework.Outcome{
		Reconciliation: framework.Reconciliation{Rows: rows, Missing: missing},
		Stats: framework.RunStats{
			Repos: 3, FailedRepos: 1, Tasks: 4, Measured: 1, Missing: 3,
			Duration: 90 * time.Second,
		},
	}
}

func TestNewRunSummary(t *testing.T) {
	t.Parallel()

	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := report.NewRunSummary("run-1", "swe-bench", started, demoOutcome())

	assert.Equal(t, 4, s.Tasks)
	assert.Equal(t, 1, s.Measured)
	assert.Equal(t, 3, s.Missing)
	assert.Equal(t, 1, s.FailedRepos)
	assert.False(t, s.Complete())
	assert.Equal(t, map[string]int{framework.StageClone: 2, framework.StageCheckout: 1}, s.ByStage)
	require.Len(t, s.Skipped, 3)
	assert.Equal(t, "p/q", s.Skipped[0].Repo)
	assert.Equal(t, "repository not found", s.Skipped[0].Reason)
}

func TestRunSummary_RenderListsSkippedTasks(t *testing.T) {
	t.Parallel()

	s := report.NewRunSummary("run-1", "swe-bench", time.Now(), demoOutcome())
	s.Output = "out.csv"

	var buf bytes.Buffer
	require.NoError(t, s.Render(&buf))

	out := buf.String()
	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "3 missing")
	assert.Contains(t, out, "0123456789ab")
	assert.NotContains(t, out, "0123456789abcdef0123")
	assert.Contains(t, out, "bad object")
	assert.Contains(t, out, "out.csv")
}

func TestRunSummary_RenderComplete(t *testing.T) {
	t.Parallel()

	out := framework.Outcome{
		Reconciliation: framework.Reconciliation{Rows: []framework.Row{{AnalysisResult: framework.AnalysisResult{TaskID: "a"}}}},
		Stats:          framework.RunStats{Repos: 1, Tasks: 1, Measured: 1},
	}

	s := report.NewRunSummary("run-2", "jsonl", time.Now(), out)
	require.True(t, s.Complete())

	var buf bytes.Buffer
	require.NoError(t, s.Render(&buf))
	assert.Contains(t, buf.String(), "complete")
	assert.NotContains(t, buf.String(), "Reason")
}

func TestRunSummary_WriteYAML(t *testing.T) {
	t.Parallel()

	s := report.NewRunSummary("run-1", "swe-bench", time.Now(), demoOutcome())

	var buf bytes.Buffer
	require.NoError(t, s.WriteYAML(&buf))

	var decoded struct {
		RunID   string         `yaml:"run_id"`
		Missing int            `yaml:"missing"`
		ByStage map[string]int `yaml:"missing_by_stage"`
		Skipped []struct {
			ID    string `yaml:"instance_id"`
			Stage string `yaml:"stage"`
		} `yaml:"skipped"`
	}

	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, 3, decoded.Missing)
	assert.Equal(t, 2, decoded.ByStage["clone"])
	require.Len(t, decoded.Skipped, 3)
	assert.Equal(t, "c1", decoded.Skipped[2].ID)
	assert.Contains(t, buf.String(), "duration: 1m30s")
}
