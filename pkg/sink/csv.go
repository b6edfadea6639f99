// Package sink writes and reads the per-task LOC tables.
package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/Sumatoshi-tech/locbench/pkg/framework"
	"github.com/Sumatoshi-tech/locbench/pkg/loc"
)

// Fixed columns.
const (
	ColumnID     = "instance_id"
	ColumnRepo   = "repo"
	ColumnCommit = "commit"
)

// Patch columns added by Augment.
const (
	ColumnPatchAdded   = "golden_patch_added"
	ColumnPatchDeleted = "golden_patch_deleted"
	ColumnPatchTotal   = "golden_patch_total"
)

// legacyIDColumns are id headers written by older exports.
var legacyIDColumns = []string{"swe_bench_test_id", "swe_lancer_task_id", "task_id"}

// Sentinel errors.
var (
	ErrNoHeader   = errors.New("csv has no header")
	ErrNoIDColumn = errors.New("csv has no task id column")
	ErrBadNumber  = errors.New("csv cell is not an integer")
)

// Header returns the LOC table header.
func Header() []string {
	return append([]string{ColumnID, ColumnRepo, ColumnCommit}, loc.Languages...)
}

// PatchColumns returns the columns Augment appends.
func PatchColumns() []string {
	return []string{ColumnPatchAdded, ColumnPatchDeleted, ColumnPatchTotal}
}

// WriteLocStats writes one row per reconciled row, in order. Missing rows
// are written with zero counts.
func WriteLocStats(w io.Writer, rows []framework.Row) error {
	cw := csv.NewWriter(w)

	err := cw.Write(Header())
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, 0, len(Header()))

	for _, row := range rows {
		record = append(record[:0], row.TaskID, row.Repo, row.Commit)
		for _, lang := range loc.Languages {
			record = append(record, strconv.FormatInt(row.Stats[lang], 10))
		}

		err = cw.Write(record)
		if err != nil {
			return fmt.Errorf("write row %s: %w", row.TaskID, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// WriteFile writes via a temporary file in the same directory and renames it
// into place, so readers never see a partial table.
func WriteFile(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}

	defer os.Remove(tmp.Name())

	err = write(tmp)
	if err != nil {
		tmp.Close()

		return err
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close temp output: %w", err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("rename output: %w", err)
	}

	return nil
}

// Table is a CSV held in memory.
type Table struct {
	Header  []string
	Records [][]string
}

// ReadTable reads a whole CSV. Rows shorter or longer than the header are
// rejected by the csv reader.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}

	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	return &Table{Header: header, Records: records}, nil
}

// Index returns the position of column, or -1.
func (t *Table) Index(column string) int {
	return slices.Index(t.Header, column)
}

// IDIndex locates the task id column, accepting legacy names.
func (t *Table) IDIndex() (int, error) {
	if i := t.Index(ColumnID); i >= 0 {
		return i, nil
	}

	for _, name := range legacyIDColumns {
		if i := t.Index(name); i >= 0 {
			return i, nil
		}
	}

	return -1, ErrNoIDColumn
}

// Write writes the table as CSV.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)

	err := cw.Write(t.Header)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	err = cw.WriteAll(t.Records)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	return nil
}

func parseCount(cell string) (int64, error) {
	if cell == "" {
		return 0, nil
	}

	n, err := strconv.ParseInt(cell, 10, 64)
	if err == nil {
		return n, nil
	}

	// Spreadsheet round trips turn integers into "12.0".
	f, ferr := strconv.ParseFloat(cell, 64)
	if ferr != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, cell)
	}

	return int64(f), nil
}
