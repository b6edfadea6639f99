package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/Sumatoshi-tech/locbench/pkg/patchstats"
)

// AugmentStats reports what Augment did.
type AugmentStats struct {
	Rows           int
	MissingPatches int
	Patch          patchstats.Stats
	ByLanguage     map[string]patchstats.Stats
}

// Augment copies the LOC table from in to out with the golden patch columns
// appended. Rows without a patch get zeros and are counted as missing.
func Augment(ctx context.Context, in io.Reader, out io.Writer, patches map[string]string, logger *slog.Logger) (AugmentStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	table, err := ReadTable(in)
	if err != nil {
		return AugmentStats{}, err
	}

	idIdx, err := table.IDIndex()
	if err != nil {
		return AugmentStats{}, err
	}

	res := AugmentStats{ByLanguage: make(map[string]patchstats.Stats)}
	table.Header = append(table.Header, PatchColumns()...)

	for i, record := range table.Records {
		id := record[idIdx]

		var counts patchstats.Stats

		if patch := patches[id]; patch != "" {
			rep := patchstats.Analyze(patch)
			counts = rep.Stats

			for lang, s := range rep.ByLanguage() {
				res.ByLanguage[lang] = res.ByLanguage[lang].Add(s)
			}
		} else {
			logger.WarnContext(ctx, "no patch found", "task", id)

			res.MissingPatches++
		}

		res.Patch = res.Patch.Add(counts)
		table.Records[i] = append(record,
			strconv.Itoa(counts.Added),
			strconv.Itoa(counts.Deleted),
			strconv.Itoa(counts.Total()),
		)
		res.Rows++
	}

	err = table.Write(out)
	if err != nil {
		return res, fmt.Errorf("write augmented table: %w", err)
	}

	return res, nil
}
