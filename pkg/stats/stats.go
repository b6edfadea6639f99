// Package stats provides the descriptive statistics used by benchmark reports.
package stats

import (
	"cmp"
	"math"
	"slices"
)

// Mean returns the arithmetic mean of values.
// Returns 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	return Sum(values) / float64(len(values))
}

// SampleStdDev returns the n−1 standard deviation, NaN with fewer than two values.
func SampleStdDev(values []float64) float64 {
	count := len(values)
	if count < 2 {
		return math.NaN()
	}

	return math.Sqrt(sumSquares(values, Mean(values)) / float64(count-1))
}

func sumSquares(values []float64, mean float64) float64 {
	var sumSq float64

	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}

	return sumSq
}

// Well-known percentile thresholds.
const (
	PercentileQ1     = 0.25
	PercentileMedian = 0.5
	PercentileQ3     = 0.75
)

// Percentile returns the p-th percentile of values using linear interpolation.
// p must be in [0, 1]. The input slice is not modified.
// Returns 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	count := len(values)
	if count == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []float64, p float64) float64 {
	count := len(sorted)
	idx := Clamp(p, 0, 1) * float64(count-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))

	if lower == upper || upper >= count {
		return sorted[lower]
	}

	frac := idx - float64(lower)

	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Median returns the 50th percentile of values.
// Returns 0 for an empty slice.
func Median(values []float64) float64 {
	return Percentile(values, PercentileMedian)
}

// Clamp restricts val to the range [lo, hi].
func Clamp[T cmp.Ordered](val, lo, hi T) T {
	return max(lo, min(val, hi))
}

// Sum returns the sum of all elements in values.
func Sum[T cmp.Ordered](values []T) T {
	var result T

	for _, v := range values {
		result += v
	}

	return result
}

// Summary is the seven-number description of a sample.
type Summary struct {
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	Std    float64 `json:"std" yaml:"std"`
	Min    float64 `json:"min" yaml:"min"`
	P25    float64 `json:"p25" yaml:"p25"`
	P75    float64 `json:"p75" yaml:"p75"`
	Max    float64 `json:"max" yaml:"max"`
}

// Describe summarizes values. Every field but Count is NaN for an empty
// sample, and Std is NaN for a single value.
func Describe(values []float64) Summary {
	if len(values) == 0 {
		nan := math.NaN()

		return Summary{Mean: nan, Median: nan, Std: nan, Min: nan, P25: nan, P75: nan, Max: nan}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return Summary{
		Count:  len(sorted),
		Mean:   Mean(sorted),
		Median: percentileSorted(sorted, PercentileMedian),
		Std:    SampleStdDev(sorted),
		Min:    sorted[0],
		P25:    percentileSorted(sorted, PercentileQ1),
		P75:    percentileSorted(sorted, PercentileQ3),
		Max:    sorted[len(sorted)-1],
	}
}
