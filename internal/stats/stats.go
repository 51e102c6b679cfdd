// Package stats provides the small set of statistics used by the
// quality validator and the alert engine.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean of values, ignoring NaNs.
// Returns NaN if no finite values are present.
func Mean(values []float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Std returns the sample standard deviation of values, ignoring NaNs.
// Returns NaN with fewer than two finite values.
func Std(values []float64) float64 {
	mean := Mean(values)
	if math.IsNaN(mean) {
		return math.NaN()
	}
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		d := v - mean
		sum += d * d
		n++
	}
	if n < 2 {
		return math.NaN()
	}
	return math.Sqrt(sum / float64(n-1))
}

// Quantile returns the q-th quantile (0..1) using linear interpolation
// between closest ranks. NaNs are ignored.
func Quantile(values []float64, q float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	if q <= 0 {
		return clean[0]
	}
	if q >= 1 {
		return clean[len(clean)-1]
	}
	pos := q * float64(len(clean)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return clean[lo]
	}
	frac := pos - float64(lo)
	return clean[lo]*(1-frac) + clean[hi]*frac
}

// IQRBounds returns the lower and upper outlier bounds
// [Q1 - m*IQR, Q3 + m*IQR].
func IQRBounds(values []float64, multiplier float64) (lower, upper float64) {
	q1 := Quantile(values, 0.25)
	q3 := Quantile(values, 0.75)
	iqr := q3 - q1
	return q1 - multiplier*iqr, q3 + multiplier*iqr
}

// ZScores returns the z-score of each value against the series mean and
// sample standard deviation. NaN inputs yield NaN scores; a zero or NaN
// deviation yields all-NaN scores.
func ZScores(values []float64) []float64 {
	mean := Mean(values)
	std := Std(values)
	scores := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsNaN(std) || std == 0 {
			scores[i] = math.NaN()
			continue
		}
		scores[i] = (v - mean) / std
	}
	return scores
}

// Pearson returns the Pearson correlation coefficient between x and y.
// Returns NaN when either series is constant or the lengths differ.
func Pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return math.NaN()
	}
	mx := Mean(x)
	my := Mean(y)
	var sxy, sxx, syy float64
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

// RollingMeanStd returns the mean and sample standard deviation of the
// last window values. Windows larger than the series shrink to fit.
func RollingMeanStd(values []float64, window int) (mean, std float64) {
	if window <= 0 || window > len(values) {
		window = len(values)
	}
	tail := values[len(values)-window:]
	return Mean(tail), Std(tail)
}

// Clip limits v to the range [lo, hi]. NaN passes through unchanged.
func Clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
