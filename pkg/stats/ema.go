package stats

// EMA is an exponential moving average seeded by its first sample.
type EMA struct {
	alpha  float64
	avg    float64
	seeded bool
}

// NewEMA returns an EMA that gives each new sample weight alpha, clamped to [0, 1].
func NewEMA(alpha float64) *EMA {
	return &EMA{alpha: Clamp(alpha, 0, 1)}
}

// Update folds v into the average and returns the result.
func (e *EMA) Update(v float64) float64 {
	if !e.seeded {
		e.avg, e.seeded = v, true

		return e.avg
	}

	e.avg += e.alpha * (v - e.avg)

	return e.avg
}
