// Package workdir hands out isolated scratch directories, one per repository,
// and guarantees their removal.
package workdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrReleased is returned by Reset once the directory has been released.
var ErrReleased = errors.New("work directory already released")

const maxPrefixLen = 48

// Manager creates work directories under a root. An empty root means the
// system temporary directory.
type Manager struct {
	root string
}

// NewManager returns a Manager rooted at root. The root is created if needed.
func NewManager(root string) (*Manager, error) {
	if root != "" {
		err := os.MkdirAll(root, 0o755)
		if err != nil {
			return nil, fmt.Errorf("create work root %s: %w", root, err)
		}
	}

	return &Manager{root: root}, nil
}

// Acquire creates a fresh, uniquely named, empty directory for repo.
func (m *Manager) Acquire(repo string) (*Dir, error) {
	path, err := os.MkdirTemp(m.root, sanitize(repo)+"-")
	if err != nil {
		return nil, fmt.Errorf("acquire work dir for %s: %w", repo, err)
	}

	return &Dir{path: path}, nil
}

// Dir is an exclusively owned scratch directory.
type Dir struct {
	path string

	once   sync.Once
	mu     sync.Mutex
	closed bool
	err    error
}

// Path returns the directory location.
func (d *Dir) Path() string { return d.path }

// Reset empties the directory while keeping it in place.
func (d *Dir) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrReleased
	}

	entries, err := os.ReadDir(d.path)
	if err != nil {
		return fmt.Errorf("reset %s: %w", d.path, err)
	}

	for _, entry := range entries {
		err = os.RemoveAll(filepath.Join(d.path, entry.Name()))
		if err != nil {
			return fmt.Errorf("reset %s: %w", d.path, err)
		}
	}

	return nil
}

// Release removes the directory and everything in it. Safe to call more
// than once; later calls return the first result.
func (d *Dir) Release() error {
	d.once.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		d.closed = true

		err := os.RemoveAll(d.path)
		if err != nil {
			d.err = fmt.Errorf("release %s: %w", d.path, err)
		}
	})

	return d.err
}

func sanitize(repo string) string {
	var b strings.Builder

	for _, r := range repo {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	out := strings.Trim(b.String(), "-.")
	if out == "" {
		out = "repo"
	}

	if len(out) > maxPrefixLen {
		out = out[:maxPrefixLen]
	}

	return out
}
