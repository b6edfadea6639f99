package framework_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locbench/pkg/framework"
	"github.com/Sumatoshi-tech/locbench/pkg/gitlib"
	"github.com/Sumatoshi-tech/locbench/pkg/loc"
	"github.com/Sumatoshi-tech/locbench/pkg/workdir"
)

const commitFile = "COMMIT"

var errCloneRefused = errors.New("fatal: repository not found")

// fakeGit simulates clone/checkout on disk and records every call.
type fakeGit struct {
	mu sync.Mutex

	failClone    map[string]bool // by remote suffix "org/name.git"
	failCheckout map[string]bool // by commit
	unknownOnce  map[string]bool // by commit; first checkout reports unknown revision
	panicOn      map[string]bool // by commit
	cloneDelay   time.Duration

	events    []string
	cloneDirs map[string]string // remote -> dir
	active    map[string]int    // dir -> operations in flight
	overlaps  int
	fetches   []string

	inflightClones int
	maxClones      int
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		failClone:    map[string]bool{},
		failCheckout: map[string]bool{},
		unknownOnce:  map[string]bool{},
		panicOn:      map[string]bool{},
		cloneDirs:    map[string]string{},
		active:       map[string]int{},
	}
}

func (g *fakeGit) enter(dir, event string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.active[dir]++
	if g.active[dir] > 1 {
		g.overlaps++
	}

	g.events = append(g.events, event)
}

func (g *fakeGit) leave(dir string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.active[dir]--
}

func (g *fakeGit) Clone(_ context.Context, remote string, ws gitlib.Workspace) error {
	repo := repoOf(remote)

	g.mu.Lock()
	g.cloneDirs[repo] = ws.Path()
	g.inflightClones++
	g.maxClones = max(g.maxClones, g.inflightClones)
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inflightClones--
		g.mu.Unlock()
	}()

	g.enter(ws.Path(), "clone "+repo)
	defer g.leave(ws.Path())

	time.Sleep(g.cloneDelay)

	if g.failClone[repo] {
		return fmt.Errorf("clone %s: %w", repo, errCloneRefused)
	}

	return os.MkdirAll(filepath.Join(ws.Path(), ".git"), 0o755)
}

func (g *fakeGit) Checkout(_ context.Context, dir, commit string) error {
	g.enter(dir, "checkout "+commit)
	defer g.leave(dir)

	g.mu.Lock()
	panicNow := g.panicOn[commit]
	fail := g.failCheckout[commit]
	unknown := g.unknownOnce[commit]
	delete(g.unknownOnce, commit)
	g.mu.Unlock()

	if panicNow {
		panic("checkout exploded on " + commit)
	}

	if fail {
		return errors.New("checkout " + commit + ": index.lock exists")
	}

	if unknown {
		return fmt.Errorf("checkout %s: %w", commit, gitlib.ErrUnknownRevision)
	}

	return os.WriteFile(filepath.Join(dir, commitFile), []byte(commit), 0o644)
}

func (g *fakeGit) Fetch(_ context.Context, dir, commit string) error {
	g.enter(dir, "fetch "+commit)
	defer g.leave(dir)

	g.mu.Lock()
	g.fetches = append(g.fetches, commit)
	g.mu.Unlock()

	return nil
}

func (g *fakeGit) eventsFor(repo string, commits map[string]string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []string

	for _, e := range g.events {
		_, arg, _ := strings.Cut(e, " ")
		if arg == repo || commits[arg] == repo {
			out = append(out, e)
		}
	}

	return out
}

func repoOf(remote string) string {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(remote, "https://github.com/"), ".git")

	return trimmed
}

// fakeCounter reads the commit the fake git left in the directory and
// derives deterministic stats from it.
type fakeCounter struct {
	git *fakeGit

	mu          sync.Mutex
	measured    []string
	failMeasure map[string]error
}

func (c *fakeCounter) Measure(_ context.Context, dir string) (loc.Stats, error) {
	data, err := os.ReadFile(filepath.Join(dir, commitFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", loc.ErrPrecondition, err)
	}

	commit := string(data)

	if c.git != nil {
		c.git.enter(dir, "measure "+commit)
		defer c.git.leave(dir)
	}

	c.mu.Lock()
	c.measured = append(c.measured, commit)
	failErr := c.failMeasure[commit]
	c.mu.Unlock()

	if failErr != nil {
		return nil, failErr
	}

	return statsFor(commit), nil
}

func statsFor(commit string) loc.Stats {
	stats := loc.ZeroStats()
	stats["Go"] = int64(len(commit) * 10)
	stats["Python"] = int64(len(commit))

	return stats
}

func newWorker(t *testing.T, git *fakeGit, counter framework.Counter) (*framework.RepoWorker, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "work")

	dirs, err := workdir.NewManager(root)
	require.NoError(t, err)

	return &framework.RepoWorker{
		Git:          git,
		Counter:      counter,
		Dirs:         dirs,
		FetchMissing: true,
	}, root
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "work directories left behind")
}
