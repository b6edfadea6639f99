package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/locbench/pkg/gitlib"
	"github.com/Sumatoshi-tech/locbench/pkg/task"
	"github.com/Sumatoshi-tech/locbench/pkg/workdir"
)

// SWE-Lancer layout.
const (
	LancerRepo       = "Expensify/App"
	LancerSource     = "https://github.com/openai/frontier-evals"
	LancerIssuesPath = "project/swelancer/issues"

	lancerCommitFile = "commit_id.txt"
	lancerPatchFile  = "bug_reintroduce.patch"
)

// SparseCloner fetches a subset of a repository.
type SparseCloner interface {
	SparseClone(ctx context.Context, remote string, ws gitlib.Workspace, paths ...string) error
}

// LoadSWELancer reads one task per issue directory holding a commit_id.txt.
// Issue directories are visited in name order; the reintroduced-bug patch is
// attached when present.
func LoadSWELancer(issuesDir string) ([]task.Task, error) {
	entries, err := os.ReadDir(issuesDir)
	if err != nil {
		return nil, fmt.Errorf("read issues: %w", err)
	}

	var tasks []task.Task

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		dir := filepath.Join(issuesDir, e.Name())

		commit, readErr := os.ReadFile(filepath.Join(dir, lancerCommitFile))
		if errors.Is(readErr, fs.ErrNotExist) {
			continue
		}

		if readErr != nil {
			return nil, fmt.Errorf("issue %s: %w", e.Name(), readErr)
		}

		patch, readErr := os.ReadFile(filepath.Join(dir, lancerPatchFile))
		if readErr != nil && !errors.Is(readErr, fs.ErrNotExist) {
			return nil, fmt.Errorf("issue %s: %w", e.Name(), readErr)
		}

		tasks = append(tasks, task.Task{
			ID:     e.Name(),
			Repo:   LancerRepo,
			Commit: strings.TrimSpace(string(commit)),
			Patch:  strings.ToValidUTF8(string(patch), "�"),
		})
	}

	return tasks, nil
}

// FetchSWELancer sparse-clones the issue tree into a fresh work directory and
// returns the directory together with the issues path inside it. The caller
// releases the directory.
func FetchSWELancer(ctx context.Context, git SparseCloner, dirs *workdir.Manager) (*workdir.Dir, string, error) {
	dir, err := dirs.Acquire("frontier-evals")
	if err != nil {
		return nil, "", err
	}

	err = git.SparseClone(ctx, LancerSource, dir, LancerIssuesPath)
	if err != nil {
		_ = dir.Release()

		return nil, "", fmt.Errorf("fetch swe-lancer issues: %w", err)
	}

	return dir, filepath.Join(dir.Path(), filepath.FromSlash(LancerIssuesPath)), nil
}
