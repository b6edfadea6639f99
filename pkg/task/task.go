// Package task defines benchmark tasks and partitions them by repository.
package task

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrEmptyID      = errors.New("task has empty id")
	ErrEmptyRepo    = errors.New("task has empty repository")
	ErrEmptyCommit  = errors.New("task has empty commit")
	ErrDuplicateID  = errors.New("duplicate task id")
	ErrNegativeSize = errors.New("task limit must not be negative")
)

// Task is one (repository, commit) pair to measure.
type Task struct {
	// ID is unique across the whole run.
	ID string `json:"instance_id" yaml:"instance_id"`

	// Repo is "org/name".
	Repo string `json:"repo" yaml:"repo"`

	// Commit is the SHA to check out.
	Commit string `json:"commit" yaml:"commit"`

	// Patch is the golden patch, kept for augmentation only.
	Patch string `json:"-" yaml:"-"`
}

// Group holds every task of one repository in input order.
type Group struct {
	Repo  string
	Tasks []Task
}

// GroupByRepo partitions tasks by repository in a single pass. Groups appear
// in the order their repository was first seen; tasks inside a group keep
// their relative input order.
func GroupByRepo(tasks []Task) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)

	for _, t := range tasks {
		pos, ok := index[t.Repo]
		if !ok {
			pos = len(groups)
			index[t.Repo] = pos
			groups = append(groups, Group{Repo: t.Repo})
		}

		groups[pos].Tasks = append(groups[pos].Tasks, t)
	}

	return groups
}

// Validate rejects tasks the pipeline cannot key or check out.
func Validate(tasks []Task) error {
	seen := make(map[string]int, len(tasks))

	for i, t := range tasks {
		switch {
		case t.ID == "":
			return fmt.Errorf("task #%d: %w", i, ErrEmptyID)
		case t.Repo == "":
			return fmt.Errorf("task %s: %w", t.ID, ErrEmptyRepo)
		case t.Commit == "":
			return fmt.Errorf("task %s: %w", t.ID, ErrEmptyCommit)
		}

		if prev, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: %s at #%d and #%d", ErrDuplicateID, t.ID, prev, i)
		}

		seen[t.ID] = i
	}

	return nil
}

// Limit returns the first n tasks. Zero means no limit.
func Limit(tasks []Task, n int) ([]Task, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeSize, n)
	}

	if n == 0 || n >= len(tasks) {
		return tasks, nil
	}

	return tasks[:n], nil
}

// Count returns the number of tasks across groups.
func Count(groups []Group) int {
	total := 0

	for _, g := range groups {
		total += len(g.Tasks)
	}

	return total
}
