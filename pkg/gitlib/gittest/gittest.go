// Package gittest builds throwaway git repositories for tests.
package gittest

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// RequireGit skips the test when the git executable is unavailable.
func RequireGit(t testing.TB) {
	t.Helper()

	_, err := exec.LookPath("git")
	if err != nil {
		t.Skip("git executable not available")
	}
}

// Repo is a non-bare repository on disk usable as a clone source.
type Repo struct {
	t    testing.TB
	path string
	repo *git.Repository
	when time.Time
}

// Option tweaks a fixture repository.
type Option func(*options)

type options struct {
	noFilter bool
}

// WithoutFilter makes the repository refuse partial clones, so clones of it
// are complete and never fetch missing objects lazily.
func WithoutFilter() Option {
	return func(o *options) { o.noFilter = true }
}

// New initializes an empty repository in a temp dir. Unless WithoutFilter is
// given, the repository serves blobless clones. Fetch by commit id is allowed.
func New(t testing.TB, opts ...Option) *Repo {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	path := t.TempDir()

	repo, err := git.PlainInit(path, false)
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)

	section := cfg.Raw.Section("uploadpack")
	section.SetOption("allowFilter", strconv.FormatBool(!o.noFilter))
	section.SetOption("allowAnySHA1InWant", "true")
	require.NoError(t, repo.Storer.SetConfig(cfg))

	return &Repo{
		t:    t,
		path: path,
		repo: repo,
		when: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Path returns the repository directory.
func (r *Repo) Path() string { return r.path }

// URL returns a file:// remote for the repository.
func (r *Repo) URL() string { return "file://" + filepath.ToSlash(r.path) }

// Write creates or overwrites a file in the work tree.
func (r *Repo) Write(name, content string) *Repo {
	r.t.Helper()

	p := filepath.Join(r.path, filepath.FromSlash(name))
	require.NoError(r.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(r.t, os.WriteFile(p, []byte(content), 0o644))

	return r
}

// Remove deletes a file from the work tree.
func (r *Repo) Remove(name string) *Repo {
	r.t.Helper()

	require.NoError(r.t, os.Remove(filepath.Join(r.path, filepath.FromSlash(name))))

	return r
}

// Commit stages every change and commits it, returning the commit id.
func (r *Repo) Commit(msg string) string {
	r.t.Helper()

	wt, err := r.repo.Worktree()
	require.NoError(r.t, err)

	require.NoError(r.t, wt.AddWithOptions(&git.AddOptions{All: true}))

	r.when = r.when.Add(time.Minute)

	hash, err := wt.Commit(msg, &git.CommitOptions{
		All: true,
		Author: &object.Signature{
			Name:  "Fixture",
			Email: "fixture@example.com",
			When:  r.when,
		},
	})
	require.NoError(r.t, err)

	return hash.String()
}

// partialCloneKeys make a clone fetch missing objects from origin on demand.
var partialCloneKeys = []string{
	"remote.origin.promisor",
	"remote.origin.partialclonefilter",
	"extensions.partialClone",
}

// DisableLazyFetch turns the clone in dir into a plain one, so a commit it
// lacks is reported as unknown instead of fetched on checkout. Some git
// versions mark a clone as partial even when the server ignored the filter.
func DisableLazyFetch(t testing.TB, dir string) {
	t.Helper()

	for _, key := range partialCloneKeys {
		err := exec.Command("git", "-C", dir, "config", "--unset", key).Run()

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == keyNotSet {
			continue
		}

		require.NoError(t, err, "unset %s", key)
	}
}

// keyNotSet is git config's exit code for unsetting an absent key.
const keyNotSet = 5

// Snapshot reads every file below dir, skipping .git, keyed by slash path.
func Snapshot(t testing.TB, dir string) map[string]string {
	t.Helper()

	files := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}

			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}

		files[filepath.ToSlash(rel)] = string(data)

		return nil
	})
	require.NoError(t, err)

	return files
}
