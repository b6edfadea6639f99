// Package report turns augmented LOC tables into benchmark complexity
// reports and renders run summaries.
package report

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/locbench/pkg/sink"
	"github.com/Sumatoshi-tech/locbench/pkg/stats"
)

// LanguageUnknown is the primary language of tasks without any counted code.
const LanguageUnknown = "Unknown"

// mainLanguageShare is the fraction of a repository's largest snapshot a
// language needs to be listed as a main language.
const mainLanguageShare = 0.05

const augmentedSuffix = "_augmented.csv"

// LanguageLOC summarizes one language over the tasks that contain it.
type LanguageLOC struct {
	Language      string        `yaml:"language"`
	TasksWithCode int           `yaml:"tasks_with_code"`
	LOC           stats.Summary `yaml:"loc"`
}

// PatchSummary describes golden patch sizes.
type PatchSummary struct {
	Added   stats.Summary `yaml:"added"`
	Deleted stats.Summary `yaml:"deleted"`
	Total   stats.Summary `yaml:"total"`
}

// PrimaryLanguagePatches groups patch sizes by the task's primary language.
type PrimaryLanguagePatches struct {
	Language  string       `yaml:"language"`
	TaskCount int          `yaml:"task_count"`
	Patches   PatchSummary `yaml:"patches"`
}

// LanguageSize is a language with its line count.
type LanguageSize struct {
	Language string `yaml:"language"`
	LOC      int64  `yaml:"loc"`
}

// Repository summarizes the tasks of one repository.
type Repository struct {
	Name             string         `yaml:"name"`
	MainLanguages    []LanguageSize `yaml:"main_languages"`
	MaxRepoSize      int64          `yaml:"max_repo_size"`
	TaskCount        int            `yaml:"task_count"`
	MedianComplexity float64        `yaml:"median_complexity"`
}

// Benchmark is the complexity report of one evaluation set.
type Benchmark struct {
	Name            string                   `yaml:"name"`
	TaskCount       int                      `yaml:"task_count"`
	RepoSize        stats.Summary            `yaml:"repo_size"`
	LOCByLanguage   []LanguageLOC            `yaml:"loc_by_language"`
	PatchByLanguage []PrimaryLanguagePatches `yaml:"patch_by_language"`
	PatchOverall    PatchSummary             `yaml:"patch_overall"`
	Repositories    []Repository             `yaml:"repositories"`
}

// NamedDataset is an augmented table with its benchmark name.
type NamedDataset struct {
	Name string
	Data *sink.Dataset
}

// LoadDir reads every *_augmented.csv under dir in name order. The benchmark
// name is the file name without "_loc_stats_augmented.csv".
func LoadDir(dir string) ([]NamedDataset, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+augmentedSuffix))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	slices.Sort(matches)

	out := make([]NamedDataset, 0, len(matches))

	for _, path := range matches {
		ds, readErr := readDataset(path)
		if readErr != nil {
			return nil, readErr
		}

		out = append(out, NamedDataset{Name: BenchmarkName(path), Data: ds})
	}

	return out, nil
}

// BenchmarkName derives a benchmark name from an augmented table path.
func BenchmarkName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), augmentedSuffix)

	return strings.TrimSuffix(name, "_loc_stats")
}

func readDataset(path string) (*sink.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ds, err := sink.ReadAugmented(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return ds, nil
}

// Analyze computes the complexity report of one benchmark.
func Analyze(name string, ds *sink.Dataset) Benchmark {
	b := Benchmark{Name: name, TaskCount: len(ds.Records)}

	totals := make([]float64, len(ds.Records))
	for i, rec := range ds.Records {
		totals[i] = float64(totalLOC(rec, ds.Languages))
	}

	b.RepoSize = stats.Describe(totals)
	b.LOCByLanguage = locByLanguage(ds)
	b.PatchByLanguage = patchByPrimaryLanguage(ds)
	b.PatchOverall = describePatches(ds.Records)
	b.Repositories = repositories(ds, totals)

	return b
}

// PrimaryLanguage returns the language with the most code, the first one in
// langs on ties, or LanguageUnknown when no language has code.
func PrimaryLanguage(rec sink.Record, langs []string) string {
	best, bestLOC := LanguageUnknown, int64(0)

	for _, lang := range langs {
		if v := rec.Stats[lang]; v > bestLOC {
			best, bestLOC = lang, v
		}
	}

	return best
}

func totalLOC(rec sink.Record, langs []string) int64 {
	var total int64
	for _, lang := range langs {
		total += rec.Stats[lang]
	}

	return total
}

func locByLanguage(ds *sink.Dataset) []LanguageLOC {
	var out []LanguageLOC

	for _, lang := range ds.Languages {
		var values []float64

		for _, rec := range ds.Records {
			if v := rec.Stats[lang]; v > 0 {
				values = append(values, float64(v))
			}
		}

		if len(values) == 0 {
			continue
		}

		out = append(out, LanguageLOC{Language: lang, TasksWithCode: len(values), LOC: stats.Describe(values)})
	}

	slices.SortStableFunc(out, func(a, b LanguageLOC) int {
		return cmp.Compare(b.TasksWithCode, a.TasksWithCode)
	})

	return out
}

func patchByPrimaryLanguage(ds *sink.Dataset) []PrimaryLanguagePatches {
	var (
		order  []string
		groups = map[string][]sink.Record{}
	)

	for _, rec := range ds.Records {
		lang := PrimaryLanguage(rec, ds.Languages)
		if _, seen := groups[lang]; !seen {
			order = append(order, lang)
		}

		groups[lang] = append(groups[lang], rec)
	}

	out := make([]PrimaryLanguagePatches, 0, len(order))
	for _, lang := range order {
		out = append(out, PrimaryLanguagePatches{
			Language:  lang,
			TaskCount: len(groups[lang]),
			Patches:   describePatches(groups[lang]),
		})
	}

	slices.SortStableFunc(out, func(a, b PrimaryLanguagePatches) int {
		return cmp.Compare(b.TaskCount, a.TaskCount)
	})

	return out
}

func describePatches(records []sink.Record) PatchSummary {
	added := make([]float64, len(records))
	deleted := make([]float64, len(records))
	total := make([]float64, len(records))

	for i, rec := range records {
		added[i] = float64(rec.Patch.Added)
		deleted[i] = float64(rec.Patch.Deleted)
		total[i] = float64(rec.Patch.Total())
	}

	return PatchSummary{
		Added:   stats.Describe(added),
		Deleted: stats.Describe(deleted),
		Total:   stats.Describe(total),
	}
}

func repositories(ds *sink.Dataset, totals []float64) []Repository {
	var (
		order []string
		byRepo = map[string][]int{}
	)

	for i, rec := range ds.Records {
		if _, seen := byRepo[rec.Repo]; !seen {
			order = append(order, rec.Repo)
		}

		byRepo[rec.Repo] = append(byRepo[rec.Repo], i)
	}

	slices.Sort(order)

	out := make([]Repository, 0, len(order))

	for _, name := range order {
		idx := byRepo[name]

		var (
			maxSize    float64
			complexity = make([]float64, 0, len(idx))
			langMax    = map[string]int64{}
		)

		for _, i := range idx {
			rec := ds.Records[i]
			maxSize = max(maxSize, totals[i])
			complexity = append(complexity, float64(rec.Patch.Total()))

			for _, lang := range ds.Languages {
				langMax[lang] = max(langMax[lang], rec.Stats[lang])
			}
		}

		out = append(out, Repository{
			Name:             name,
			MainLanguages:    mainLanguages(ds.Languages, langMax, maxSize),
			MaxRepoSize:      int64(maxSize),
			TaskCount:        len(idx),
			MedianComplexity: stats.Median(complexity),
		})
	}

	slices.SortStableFunc(out, func(a, b Repository) int {
		return cmp.Compare(b.TaskCount, a.TaskCount)
	})

	return out
}

// mainLanguages keeps languages with at least mainLanguageShare of the
// largest snapshot, largest first. Languages without code are never listed.
func mainLanguages(langs []string, langMax map[string]int64, maxSize float64) []LanguageSize {
	threshold := maxSize * mainLanguageShare

	var out []LanguageSize

	for _, lang := range langs {
		v := langMax[lang]
		if v > 0 && float64(v) >= threshold {
			out = append(out, LanguageSize{Language: lang, LOC: v})
		}
	}

	slices.SortStableFunc(out, func(a, b LanguageSize) int {
		return cmp.Compare(b.LOC, a.LOC)
	})

	return out
}
