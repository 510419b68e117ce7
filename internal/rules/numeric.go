package rules

import "math"

// WithinTolerance reports whether actual is within pct percent of expected.
func WithinTolerance(actual, expected, pct float64) bool {
	diff := math.Abs(actual - expected)
	if expected == 0 {
		return diff < 1
	}
	return diff <= math.Abs(expected)*pct/100
}

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// VariancePct returns the coefficient of variation (population standard
// deviation over the mean) as a percentage. Fewer than two values, or a zero
// mean, yield 0.
func VariancePct(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	ss := 0.0
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss/float64(len(values))) / math.Abs(mean) * 100
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
