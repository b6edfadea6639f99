package framework_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locbench/pkg/framework"
	"github.com/Sumatoshi-tech/locbench/pkg/loc"
	"github.com/Sumatoshi-tech/locbench/pkg/observability"
	"github.com/Sumatoshi-tech/locbench/pkg/task"
)

func group(repo string, commits ...string) task.Group {
	g := task.Group{Repo: repo}
	for i, c := range commits {
		g.Tasks = append(g.Tasks, task.Task{ID: fmt.Sprintf("%s#%d", repo, i), Repo: repo, Commit: c})
	}

	return g
}

func resultIDs(b framework.Batch) []string {
	ids := make([]string, 0, len(b.Results))
	for _, r := range b.Results {
		ids = append(ids, r.TaskID)
	}

	return ids
}

func TestRepoWorker_ChecksOutAndMeasuresInGroupOrder(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	counter := &fakeCounter{git: git}
	worker, root := newWorker(t, git, counter)

	g := group("x/y", "c1", "c2", "c3")
	batch := worker.Process(context.Background(), g)

	require.NoError(t, batch.Err)
	assert.Empty(t, batch.Missing)
	assert.Equal(t, []string{"x/y#0", "x/y#1", "x/y#2"}, resultIDs(batch))

	commits := map[string]string{"c1": "x/y", "c2": "x/y", "c3": "x/y"}
	assert.Equal(t, []string{
		"clone x/y",
		"checkout c1", "measure c1",
		"checkout c2", "measure c2",
		"checkout c3", "measure c3",
	}, git.eventsFor("x/y", commits))

	assert.Zero(t, git.overlaps)
	assert.Equal(t, statsFor("c2"), batch.Results[1].Stats)
	requireEmptyDir(t, root)
}

func TestRepoWorker_CloneFailureSkipsWholeRepository(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	git.failClone["p/q"] = true
	counter := &fakeCounter{git: git}
	worker, root := newWorker(t, git, counter)

	batch := worker.Process(context.Background(), group("p/q", "1", "2"))

	require.Error(t, batch.Err)
	assert.Empty(t, batch.Results)
	require.Len(t, batch.Missing, 2)

	for _, m := range batch.Missing {
		assert.Equal(t, framework.StageClone, m.Stage)
		assert.Contains(t, m.Reason, "repository not found")
	}

	assert.Empty(t, counter.measured)
	requireEmptyDir(t, root)
}

func TestRepoWorker_CheckoutFailureSkipsOnlyThatTask(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	git.failCheckout["bad"] = true
	worker, root := newWorker(t, git, &fakeCounter{git: git})

	batch := worker.Process(context.Background(), group("x/y", "good1", "bad", "good2"))

	require.NoError(t, batch.Err)
	assert.Equal(t, []string{"x/y#0", "x/y#2"}, resultIDs(batch))
	require.Len(t, batch.Missing, 1)
	assert.Equal(t, "x/y#1", batch.Missing[0].Task.ID)
	assert.Equal(t, framework.StageCheckout, batch.Missing[0].Stage)
	requireEmptyDir(t, root)
}

func TestRepoWorker_MeasureFailureSkipsOnlyThatTask(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	counter := &fakeCounter{git: git, failMeasure: map[string]error{"b": errors.New("counter crashed")}}
	worker, _ := newWorker(t, git, counter)

	batch := worker.Process(context.Background(), group("x/y", "a", "b", "c"))

	require.NoError(t, batch.Err)
	assert.Equal(t, []string{"x/y#0", "x/y#2"}, resultIDs(batch))
	require.Len(t, batch.Missing, 1)
	assert.Equal(t, framework.StageMeasure, batch.Missing[0].Stage)
}

func TestRepoWorker_PreconditionViolationAbortsRepository(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	counter := &fakeCounter{git: git, failMeasure: map[string]error{
		"b": fmt.Errorf("%w: %w", loc.ErrPrecondition, loc.ErrDirEmpty),
	}}
	worker, root := newWorker(t, git, counter)

	batch := worker.Process(context.Background(), group("x/y", "a", "b", "c"))

	require.ErrorIs(t, batch.Err, loc.ErrPrecondition)
	assert.Equal(t, []string{"x/y#0"}, resultIDs(batch))
	require.Len(t, batch.Missing, 2)
	assert.Equal(t, "x/y#1", batch.Missing[0].Task.ID)
	assert.Equal(t, "x/y#2", batch.Missing[1].Task.ID)
	assert.Equal(t, []string{"a", "b"}, counter.measured, "no checkout after the violation")
	requireEmptyDir(t, root)
}

func TestRepoWorker_FetchesUnknownCommit(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	git.unknownOnce["late"] = true
	worker, _ := newWorker(t, git, &fakeCounter{git: git})

	batch := worker.Process(context.Background(), group("x/y", "late"))

	require.NoError(t, batch.Err)
	assert.Len(t, batch.Results, 1)
	assert.Equal(t, []string{"late"}, git.fetches)
}

func TestRepoWorker_UnknownCommitWithoutFetch(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	git.unknownOnce["late"] = true
	worker, _ := newWorker(t, git, &fakeCounter{git: git})
	worker.FetchMissing = false

	batch := worker.Process(context.Background(), group("x/y", "late"))

	require.Len(t, batch.Missing, 1)
	assert.Equal(t, framework.StageCheckout, batch.Missing[0].Stage)
	assert.Empty(t, git.fetches)
}

func TestRepoWorker_SkipLogCarriesRepoAndPermanence(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	git := newFakeGit()
	git.unknownOnce["late"] = true
	git.failCheckout["busy"] = true
	worker, _ := newWorker(t, git, &fakeCounter{git: git})
	worker.FetchMissing = false
	worker.Logger = slog.New(observability.NewTracingHandler(
		slog.NewTextHandler(&buf, nil), "locbench", "", observability.ModeAnalyze))

	batch := worker.Process(context.Background(), group("x/y", "late", "busy"))
	require.Len(t, batch.Missing, 2)

	var lines []string
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		lines = append(lines, string(line))
	}

	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "commit=late")
	assert.Contains(t, lines[0], "permanent=true")
	assert.Contains(t, lines[0], "repo=x/y")
	assert.Contains(t, lines[1], "commit=busy")
	assert.Contains(t, lines[1], "permanent=false")
}

func TestRepoWorker_InvalidRepositoryName(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	worker, _ := newWorker(t, git, &fakeCounter{git: git})

	batch := worker.Process(context.Background(), group("not-a-repo", "a"))

	require.Error(t, batch.Err)
	require.Len(t, batch.Missing, 1)
	assert.Equal(t, framework.StageRemote, batch.Missing[0].Stage)
	assert.Empty(t, git.events)
}

func TestRepoWorker_CanceledContext(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	worker, _ := newWorker(t, git, &fakeCounter{git: git})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := worker.Process(ctx, group("x/y", "a", "b"))

	require.ErrorIs(t, batch.Err, context.Canceled)
	require.Len(t, batch.Missing, 2)
	assert.Equal(t, framework.StageCanceled, batch.Missing[0].Stage)
	assert.Empty(t, git.events)
}

func TestRepoWorker_ReleasesDirectoryOnPanic(t *testing.T) {
	t.Parallel()

	git := newFakeGit()
	git.panicOn["boom"] = true
	worker, root := newWorker(t, git, &fakeCounter{git: git})

	assert.Panics(t, func() {
		worker.Process(context.Background(), group("x/y", "ok", "boom"))
	})

	requireEmptyDir(t, root)
}
