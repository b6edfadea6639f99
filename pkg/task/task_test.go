package task_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locbench/pkg/task"
)

func TestGroupByRepo_PreservesOrder(t *testing.T) {
	t.Parallel()

	tasks := []task.Task{
		{ID: "a1", Repo: "x/y", Commit: "abc"},
		{ID: "b1", Repo: "p/q", Commit: "123"},
		{ID: "a2", Repo: "x/y", Commit: "def"},
		{ID: "c1", Repo: "m/n", Commit: "999"},
		{ID: "b2", Repo: "p/q", Commit: "456"},
	}

	groups := task.GroupByRepo(tasks)

	require.Len(t, groups, 3)
	assert.Equal(t, "x/y", groups[0].Repo)
	assert.Equal(t, "p/q", groups[1].Repo)
	assert.Equal(t, "m/n", groups[2].Repo)

	assert.Equal(t, []string{"a1", "a2"}, ids(groups[0].Tasks))
	assert.Equal(t, []string{"b1", "b2"}, ids(groups[1].Tasks))
	assert.Equal(t, []string{"c1"}, ids(groups[2].Tasks))
}

func TestGroupByRepo_Completeness(t *testing.T) {
	t.Parallel()

	var tasks []task.Task

	for i := range 200 {
		tasks = append(tasks, task.Task{
			ID:     fmt.Sprintf("t%03d", i),
			Repo:   fmt.Sprintf("org/repo%d", (i*7)%13),
			Commit: fmt.Sprintf("%040d", i),
		})
	}

	groups := task.GroupByRepo(tasks)

	seen := make(map[string]int)

	for _, g := range groups {
		lastPos := -1

		for _, tk := range g.Tasks {
			assert.Equal(t, g.Repo, tk.Repo)

			seen[tk.ID]++

			pos := position(tasks, tk.ID)
			assert.Greater(t, pos, lastPos, "task %s out of input order", tk.ID)

			lastPos = pos
		}
	}

	assert.Len(t, seen, len(tasks))

	for id, n := range seen {
		assert.Equal(t, 1, n, "task %s grouped %d times", id, n)
	}

	assert.Equal(t, len(tasks), task.Count(groups))
}

func TestGroupByRepo_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, task.GroupByRepo(nil))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		tasks []task.Task
		want  error
	}{
		{name: "ok", tasks: []task.Task{{ID: "a", Repo: "x/y", Commit: "1"}}},
		{name: "empty id", tasks: []task.Task{{Repo: "x/y", Commit: "1"}}, want: task.ErrEmptyID},
		{name: "empty repo", tasks: []task.Task{{ID: "a", Commit: "1"}}, want: task.ErrEmptyRepo},
		{name: "empty commit", tasks: []task.Task{{ID: "a", Repo: "x/y"}}, want: task.ErrEmptyCommit},
		{
			name: "duplicate",
			tasks: []task.Task{
				{ID: "a", Repo: "x/y", Commit: "1"},
				{ID: "a", Repo: "p/q", Commit: "2"},
			},
			want: task.ErrDuplicateID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := task.Validate(tt.tasks)
			if tt.want == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLimit(t *testing.T) {
	t.Parallel()

	tasks := []task.Task{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	got, err := task.Limit(tasks, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got))

	got, err = task.Limit(tasks, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = task.Limit(tasks, 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = task.Limit(tasks, -1)
	require.ErrorIs(t, err, task.ErrNegativeSize)
}

func ids(tasks []task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, tk := range tasks {
		out = append(out, tk.ID)
	}

	return out
}

func position(tasks []task.Task, id string) int {
	for i, tk := range tasks {
		if tk.ID == id {
			return i
		}
	}

	return -1
}
