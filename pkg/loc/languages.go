package loc

import "slices"

// Languages is the closed set of languages every Stats value carries, in the
// column order used by the CSV sink.
var Languages = []string{
	"C", "C++", "Java", "Kotlin", "Python", "Go", "Rust", "JavaScript", "HTML",
	"Ruby", "TypeScript", "PHP",
}

// folds maps header-only counter labels onto their base language.
var folds = map[string]string{
	"C Header":   "C",
	"C++ Header": "C++",
}

// Stats maps each recognized language to its code-line count.
type Stats map[string]int64

// ZeroStats returns a Stats value with every recognized language at 0.
func ZeroStats() Stats {
	stats := make(Stats, len(Languages))
	for _, lang := range Languages {
		stats[lang] = 0
	}

	return stats
}

// Total sums the recognized languages.
func (s Stats) Total() int64 {
	var total int64
	for _, lang := range Languages {
		total += s[lang]
	}

	return total
}

// IsRecognized reports whether lang is one of Languages.
func IsRecognized(lang string) bool {
	return slices.Contains(Languages, lang)
}

// Entry is one language row of the counter's output.
type Entry struct {
	Name string `json:"Name"`
	Code int64  `json:"Code"`
}

// Normalize folds header variants into their base language, drops labels
// outside Languages and zero-fills whatever the counter did not report.
func Normalize(entries []Entry) Stats {
	stats := ZeroStats()

	for _, e := range entries {
		name := e.Name
		if base, ok := folds[name]; ok {
			name = base
		}

		if !IsRecognized(name) {
			continue
		}

		if e.Code > 0 {
			stats[name] += e.Code
		}
	}

	return stats
}
