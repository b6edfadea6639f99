// Package patchstats counts changed lines in unified diffs and attributes
// them to files and languages.
package patchstats

import (
	"path"
	"sort"
	"strings"

	"github.com/src-d/enry/v2"
)

// LanguageOther groups lines of files enry cannot classify or lines that
// appear before any file header.
const LanguageOther = "Other"

const devNull = "/dev/null"

// Stats counts added and deleted lines.
type Stats struct {
	Added   int `json:"added" yaml:"added"`
	Deleted int `json:"deleted" yaml:"deleted"`
}

// Total returns added plus deleted lines.
func (s Stats) Total() int { return s.Added + s.Deleted }

// Add sums two counts.
func (s Stats) Add(o Stats) Stats {
	return Stats{Added: s.Added + o.Added, Deleted: s.Deleted + o.Deleted}
}

// FileStats is the change count of one file of a patch.
type FileStats struct {
	Path     string
	Language string
	Stats
}

// Report is a patch broken down per file.
type Report struct {
	Stats

	Files []FileStats
}

// Count returns the lines added and deleted by patch. Lines starting with
// "+" count as added unless they start with "+++"; likewise "-" and "---".
func Count(patch string) Stats {
	var s Stats

	for line := range strings.Lines(patch) {
		s = s.Add(classify(line))
	}

	return s
}

// Analyze counts patch per file. Totals equal Count(patch).
func Analyze(patch string) Report {
	var (
		rep     Report
		current = -1
	)

	for line := range strings.Lines(patch) {
		line = strings.TrimRight(line, "\r\n")

		switch {
		case strings.HasPrefix(line, "diff --git "):
			rep.Files = append(rep.Files, FileStats{Path: gitHeaderPath(line)})
			current = len(rep.Files) - 1

			continue
		case strings.HasPrefix(line, "+++ "):
			if p := headerPath(line[4:]); p != "" && current >= 0 {
				rep.Files[current].Path = p
			} else if p != "" {
				rep.Files = append(rep.Files, FileStats{Path: p})
				current = len(rep.Files) - 1
			}

			continue
		}

		delta := classify(line)
		if delta == (Stats{}) {
			continue
		}

		rep.Stats = rep.Stats.Add(delta)

		if current < 0 {
			rep.Files = append(rep.Files, FileStats{})
			current = 0
		}

		rep.Files[current].Stats = rep.Files[current].Stats.Add(delta)
	}

	for i := range rep.Files {
		rep.Files[i].Language = Language(rep.Files[i].Path)
	}

	return rep
}

// ByLanguage sums the report's files per language.
func (r Report) ByLanguage() map[string]Stats {
	out := make(map[string]Stats)
	for _, f := range r.Files {
		out[f.Language] = out[f.Language].Add(f.Stats)
	}

	return out
}

// Languages returns the report's languages by descending changed lines.
func (r Report) Languages() []string {
	by := r.ByLanguage()

	langs := make([]string, 0, len(by))
	for lang := range by {
		langs = append(langs, lang)
	}

	sort.Slice(langs, func(i, j int) bool {
		ti, tj := by[langs[i]].Total(), by[langs[j]].Total()
		if ti != tj {
			return ti > tj
		}

		return langs[i] < langs[j]
	})

	return langs
}

// Language guesses the language of a file from its name.
func Language(name string) string {
	if name == "" {
		return LanguageOther
	}

	base := path.Base(name)

	lang, _ := enry.GetLanguageByFilename(base)
	if lang == "" {
		lang, _ = enry.GetLanguageByExtension(base)
	}

	if lang == "" {
		return LanguageOther
	}

	return lang
}

func classify(line string) Stats {
	switch {
	case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
		return Stats{Added: 1}
	case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
		return Stats{Deleted: 1}
	}

	return Stats{}
}

// gitHeaderPath extracts the new path of "diff --git a/x b/y".
func gitHeaderPath(line string) string {
	rest := strings.TrimPrefix(line, "diff --git ")

	if i := strings.LastIndex(rest, " b/"); i >= 0 {
		return rest[i+3:]
	}

	return ""
}

// headerPath strips the a/ or b/ prefix and any timestamp from a ---/+++ header.
func headerPath(p string) string {
	p, _, _ = strings.Cut(p, "\t")
	p = strings.TrimSpace(p)

	if p == devNull {
		return ""
	}

	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		return p[2:]
	}

	return p
}
