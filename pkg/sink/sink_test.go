package sink_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locbench/pkg/framework"
	"github.com/Sumatoshi-tech/locbench/pkg/loc"
	"github.com/Sumatoshi-tech/locbench/pkg/patchstats"
	"github.com/Sumatoshi-tech/locbench/pkg/sink"
)

const langHeader = "C,C++,Java,Kotlin,Python,Go,Rust,JavaScript,HTML,Ruby,TypeScript,PHP"

func row(id, repo, commit string, stats loc.Stats, missing bool) framework.Row {
	full := loc.ZeroStats()
	for k, v := range stats {
		full[k] = v
	}

	return framework.Row{
		AnalysisResult: framework.AnalysisResult{TaskID: id, Repo: repo, Commit: commit, Stats: full},
		Missing:        missing,
	}
}

func TestWriteLocStats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	err := sink.WriteLocStats(&buf, []framework.Row{
		row("a1", "x/y", "abc", loc.Stats{"Go": 1200, "C": 7}, false),
		row("b1", "p/q", "123", nil, true),
	})
	require.NoError(t, err)

	want := "instance_id,repo,commit," + langHeader + "\n" +
		"a1,x/y,abc,7,0,0,0,0,1200,0,0,0,0,0,0\n" +
		"b1,p/q,123,0,0,0,0,0,0,0,0,0,0,0,0\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteFile_Atomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out", "stats.csv")

	require.NoError(t, sink.WriteFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "ok\n")

		return err
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(data))

	boom := errors.New("boom")
	err = sink.WriteFile(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")

		return boom
	})
	require.ErrorIs(t, err, boom)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(data), "failed write leaves the previous file")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file removed")
}

func TestAugment(t *testing.T) {
	t.Parallel()

	in := "instance_id,repo,commit,Go\n" +
		"a1,x/y,abc,10\n" +
		"b1,p/q,123,0\n"

	patches := map[string]string{
		"a1": "diff --git a/main.go b/main.go\n--- a/main.go\n+++ b/main.go\n@@\n-x\n+y\n+z\n",
	}

	var out bytes.Buffer

	res, err := sink.Augment(context.Background(), strings.NewReader(in), &out, patches, nil)
	require.NoError(t, err)

	want := "instance_id,repo,commit,Go,golden_patch_added,golden_patch_deleted,golden_patch_total\n" +
		"a1,x/y,abc,10,2,1,3\n" +
		"b1,p/q,123,0,0,0,0\n"
	assert.Equal(t, want, out.String())

	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 1, res.MissingPatches)
	assert.Equal(t, patchstats.Stats{Added: 2, Deleted: 1}, res.Patch)
	assert.Equal(t, 3, res.ByLanguage["Go"].Total())
}

func TestAugment_LegacyIDColumn(t *testing.T) {
	t.Parallel()

	in := "swe_lancer_task_id,repo,commit\n42_1,Expensify/App,c\n"

	var out bytes.Buffer

	res, err := sink.Augment(context.Background(), strings.NewReader(in), &out, map[string]string{"42_1": "+a\n"}, nil)
	require.NoError(t, err)

	assert.Zero(t, res.MissingPatches)
	assert.Contains(t, out.String(), "42_1,Expensify/App,c,1,0,1")
}

func TestAugment_Errors(t *testing.T) {
	t.Parallel()

	_, err := sink.Augment(context.Background(), strings.NewReader(""), io.Discard, nil, nil)
	require.ErrorIs(t, err, sink.ErrNoHeader)

	_, err = sink.Augment(context.Background(), strings.NewReader("name,repo\n"), io.Discard, nil, nil)
	require.ErrorIs(t, err, sink.ErrNoIDColumn)
}

func TestReadAugmented(t *testing.T) {
	t.Parallel()

	in := "instance_id,repo,commit,Python,Go,Unknown,golden_patch_added,golden_patch_deleted,golden_patch_total\n" +
		"a,x/y,1,100,5.0,9,3,1,4\n" +
		"b,x/y,2,,20,0,0,0,0\n"

	ds, err := sink.ReadAugmented(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"Python", "Go"}, ds.Languages, "canonical order, unknown columns ignored")
	require.Len(t, ds.Records, 2)
	assert.Equal(t, loc.Stats{"Python": 100, "Go": 5}, ds.Records[0].Stats)
	assert.Equal(t, patchstats.Stats{Added: 3, Deleted: 1}, ds.Records[0].Patch)
	assert.Equal(t, int64(0), ds.Records[1].Stats["Python"])
	assert.Equal(t, "x/y", ds.Records[1].Repo)
}

func TestReadAugmented_BadNumber(t *testing.T) {
	t.Parallel()

	_, err := sink.ReadAugmented(strings.NewReader("instance_id,Go\na,lots\n"))
	require.ErrorIs(t, err, sink.ErrBadNumber)
}

func TestRoundTripWriteThenRead(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, sink.WriteLocStats(&buf, []framework.Row{row("a", "x/y", "1", loc.Stats{"Rust": 3}, false)}))

	ds, err := sink.ReadAugmented(&buf)
	require.NoError(t, err)

	assert.Equal(t, loc.Languages, ds.Languages)
	assert.Equal(t, int64(3), ds.Records[0].Stats["Rust"])
	assert.Zero(t, ds.Records[0].Patch.Total())
}
