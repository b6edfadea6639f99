package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locbench/pkg/dataset"
	"github.com/Sumatoshi-tech/locbench/pkg/gitlib"
	"github.com/Sumatoshi-tech/locbench/pkg/loc"
)

const commitFile = "COMMIT"

var errNotFound = errors.New("fatal: repository not found")

type fakeGit struct {
	mu sync.Mutex

	versionErr error
	failClone  map[string]bool
	issues     map[string]string // swe-lancer issue id -> commit
	sparse     []string
}

func (g *fakeGit) Version(context.Context) (string, error) {
	if g.versionErr != nil {
		return "", g.versionErr
	}

	return "git version 2.45.0", nil
}

func (g *fakeGit) Clone(_ context.Context, remote string, ws gitlib.Workspace) error {
	for repo := range g.failClone {
		if strings.Contains(remote, repo) {
			return errNotFound
		}
	}

	return os.MkdirAll(filepath.Join(ws.Path(), ".git"), 0o755)
}

func (g *fakeGit) Checkout(_ context.Context, dir, commit string) error {
	return os.WriteFile(filepath.Join(dir, commitFile), []byte(commit), 0o644)
}

func (g *fakeGit) Fetch(context.Context, string, string) error { return nil }

func (g *fakeGit) SparseClone(_ context.Context, remote string, ws gitlib.Workspace, paths ...string) error {
	g.mu.Lock()
	g.sparse = append(g.sparse, remote)
	g.mu.Unlock()

	for id, commit := range g.issues {
		issue := filepath.Join(ws.Path(), filepath.FromSlash(dataset.LancerIssuesPath), id)

		err := os.MkdirAll(issue, 0o755)
		if err != nil {
			return err
		}

		err = os.WriteFile(filepath.Join(issue, "commit_id.txt"), []byte(commit+"\n"), 0o644)
		if err != nil {
			return err
		}
	}

	return nil
}

type fakeCounter struct {
	checkErr error
}

func (c *fakeCounter) Check(context.Context) (string, error) {
	if c.checkErr != nil {
		return "", c.checkErr
	}

	return "scc version 3.4.0", nil
}

func (c *fakeCounter) Measure(_ context.Context, dir string) (loc.Stats, error) {
	data, err := os.ReadFile(filepath.Join(dir, commitFile))
	if err != nil {
		return nil, err
	}

	stats := loc.ZeroStats()
	stats["Go"] = int64(len(data) * 10)

	return stats, nil
}

func fakeTools(git *fakeGit, counter *fakeCounter) toolFactory {
	return toolFactory{
		git:     func(*runEnv) gitTool { return git },
		counter: func(*runEnv) (counterTool, error) { return counter, nil },
	}
}

// execute runs sub under a root carrying the persistent --config flag.
func execute(t *testing.T, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()

	root := &cobra.Command{Use: "locbench", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().String(flagConfig, "", "")
	root.AddCommand(sub)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{sub.Name()}, args...))

	err := root.Execute()

	return stdout.String(), err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}
