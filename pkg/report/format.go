package report

import (
	"math"
	"strconv"
)

const notAvailable = "N/A"

// FormatNumber renders v compactly: 1.2M, 34.5K, 12.3 or 12. NaN renders as N/A.
func FormatNumber(v float64) string {
	const (
		thousand = 1_000
		million  = 1_000_000
	)

	switch {
	case math.IsNaN(v):
		return notAvailable
	case math.Abs(v) >= million:
		return strconv.FormatFloat(v/million, 'f', 1, 64) + "M"
	case math.Abs(v) >= thousand:
		return strconv.FormatFloat(v/thousand, 'f', 1, 64) + "K"
	case v == math.Trunc(v):
		return strconv.FormatFloat(v, 'f', 0, 64)
	default:
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
}

// fixed renders v with the given decimals, N/A for NaN.
func fixed(v float64, decimals int) string {
	if math.IsNaN(v) {
		return notAvailable
	}

	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// meanMedian renders "mean/median" as used in patch tables.
func meanMedian(mean, median float64, sep string) string {
	return fixed(mean, 1) + sep + fixed(median, 0)
}

// csvFloat renders v for CSV; NaN becomes an empty cell.
func csvFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}

	return strconv.FormatFloat(v, 'f', -1, 64)
}
