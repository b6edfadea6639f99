package commands

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locbench/pkg/dataset"
	"github.com/Sumatoshi-tech/locbench/pkg/sink"
)

func TestAugmentCommand_AppendsPatchColumns(t *testing.T) {
	dir := t.TempDir()

	patches := `{"id": "a1", "repo": "x/y", "commit": "abc", "patch": "diff --git a/m.go b/m.go\n--- a/m.go\n+++ b/m.go\n+x\n+y\n-z\n"}
{"id": "a2", "repo": "x/y", "commit": "def", "patch": ""}
`
	ds := writeFile(t, filepath.Join(dir, "tasks.jsonl"), patches)

	header := strings.Join(sink.Header(), ",")
	zeros := strings.TrimSuffix(strings.Repeat("0,", len(sink.Header())-3), ",")
	input := writeFile(t, filepath.Join(dir, "jsonl_loc_stats.csv"),
		header+"\na1,x/y,abc,"+zeros+"\na2,x/y,def,"+zeros+"\n")

	stdout, err := execute(t, NewAugmentCommand(), input, "--eval-set", dataset.JSONL, "--dataset", ds)
	require.NoError(t, err)

	out := filepath.Join(dir, "jsonl_loc_stats_augmented.csv")
	table := readTable(t, out)

	require.Len(t, table.Records, 2)
	assert.Equal(t, "2", table.Records[0][table.Index(sink.ColumnPatchAdded)])
	assert.Equal(t, "1", table.Records[0][table.Index(sink.ColumnPatchDeleted)])
	assert.Equal(t, "3", table.Records[0][table.Index(sink.ColumnPatchTotal)])
	assert.Equal(t, "0", table.Records[1][table.Index(sink.ColumnPatchTotal)])

	assert.Contains(t, stdout, "Augmented 2 rows")
	assert.Contains(t, stdout, "missing patches: 1")
	assert.Contains(t, stdout, "Go")
}

func TestAugmentCommand_MissingInput(t *testing.T) {
	dir := t.TempDir()
	ds := writeFile(t, filepath.Join(dir, "tasks.jsonl"), tasksJSONL)

	_, err := execute(t, NewAugmentCommand(), filepath.Join(dir, "nope.csv"), "--eval-set", dataset.JSONL, "--dataset", ds)
	require.Error(t, err)
}
