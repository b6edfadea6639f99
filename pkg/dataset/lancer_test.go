package dataset_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locbench/pkg/dataset"
	"github.com/Sumatoshi-tech/locbench/pkg/gitlib"
	"github.com/Sumatoshi-tech/locbench/pkg/workdir"
)

type fakeSparse struct {
	remote string
	paths  []string
	err    error
}

func (f *fakeSparse) SparseClone(_ context.Context, remote string, ws gitlib.Workspace, paths ...string) error {
	f.remote, f.paths = remote, paths
	if f.err != nil {
		return f.err
	}

	issue := filepath.Join(ws.Path(), "project", "swelancer", "issues", "42_1")
	if err := os.MkdirAll(issue, 0o755); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(issue, "commit_id.txt"), []byte("abc\n"), 0o600)
}

func TestFetchSWELancer(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "work")
	dirs, err := workdir.NewManager(root)
	require.NoError(t, err)

	git := &fakeSparse{}

	dir, issues, err := dataset.FetchSWELancer(context.Background(), git, dirs)
	require.NoError(t, err)

	assert.Equal(t, dataset.LancerSource, git.remote)
	assert.Equal(t, []string{dataset.LancerIssuesPath}, git.paths)

	tasks, err := dataset.LoadSWELancer(issues)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "42_1", tasks[0].ID)

	require.NoError(t, dir.Release())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchSWELancer_CloneFailureReleases(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "work")
	dirs, err := workdir.NewManager(root)
	require.NoError(t, err)

	boom := errors.New("network down")

	_, _, err = dataset.FetchSWELancer(context.Background(), &fakeSparse{err: boom}, dirs)
	require.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
