package sink

import (
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/locbench/pkg/loc"
	"github.com/Sumatoshi-tech/locbench/pkg/patchstats"
)

// Record is one row of an augmented LOC table.
type Record struct {
	ID     string
	Repo   string
	Commit string
	Stats  loc.Stats
	Patch  patchstats.Stats
}

// Dataset is a parsed augmented table. Languages lists the recognized
// language columns present in the file, in canonical order.
type Dataset struct {
	Languages []string
	Records   []Record
}

// ReadAugmented parses an augmented LOC table. Patch columns are optional
// and read as zero when absent.
func ReadAugmented(r io.Reader) (*Dataset, error) {
	table, err := ReadTable(r)
	if err != nil {
		return nil, err
	}

	idIdx, err := table.IDIndex()
	if err != nil {
		return nil, err
	}

	ds := &Dataset{}
	langIdx := map[string]int{}

	for _, lang := range loc.Languages {
		if i := table.Index(lang); i >= 0 {
			ds.Languages = append(ds.Languages, lang)
			langIdx[lang] = i
		}
	}

	repoIdx, commitIdx := table.Index(ColumnRepo), table.Index(ColumnCommit)
	addIdx, delIdx := table.Index(ColumnPatchAdded), table.Index(ColumnPatchDeleted)

	for n, record := range table.Records {
		rec := Record{ID: record[idIdx], Stats: make(loc.Stats, len(ds.Languages))}
		if repoIdx >= 0 {
			rec.Repo = record[repoIdx]
		}

		if commitIdx >= 0 {
			rec.Commit = record[commitIdx]
		}

		for lang, i := range langIdx {
			v, err := parseCount(record[i])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", n+2, lang, err)
			}

			rec.Stats[lang] = v
		}

		added, err := optionalCount(record, addIdx)
		if err != nil {
			return nil, fmt.Errorf("row %d column %s: %w", n+2, ColumnPatchAdded, err)
		}

		deleted, err := optionalCount(record, delIdx)
		if err != nil {
			return nil, fmt.Errorf("row %d column %s: %w", n+2, ColumnPatchDeleted, err)
		}

		rec.Patch = patchstats.Stats{Added: int(added), Deleted: int(deleted)}
		ds.Records = append(ds.Records, rec)
	}

	return ds, nil
}

func optionalCount(record []string, idx int) (int64, error) {
	if idx < 0 {
		return 0, nil
	}

	return parseCount(record[idx])
}
