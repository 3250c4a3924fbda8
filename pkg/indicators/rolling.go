// Package indicators computes the Bollinger %b based indicators. Rolling
// windows yield NaN until they are full and whenever they contain a NaN.
package indicators

import "math"

// RollingMean calculates the simple moving average over period values.
func RollingMean(values []float64, period int) []float64 {
	result := nanSlice(len(values))
	if period <= 0 {
		return result
	}

	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if hasNaN(window) {
			continue
		}
		result[i] = sum(window) / float64(period)
	}
	return result
}

// RollingStd calculates the sample standard deviation (n-1 denominator) over
// period values.
func RollingStd(values []float64, period int) []float64 {
	result := nanSlice(len(values))
	if period < 2 {
		return result
	}

	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if hasNaN(window) {
			continue
		}
		mean := sum(window) / float64(period)
		var variance float64
		for _, v := range window {
			diff := v - mean
			variance += diff * diff
		}
		variance /= float64(period - 1)
		result[i] = math.Sqrt(variance)
	}
	return result
}

// Bollinger returns the upper and lower bands: period SMA plus/minus
// multiplier sample standard deviations.
func Bollinger(values []float64, period int, multiplier float64) (upper, lower []float64) {
	mid := RollingMean(values, period)
	std := RollingStd(values, period)

	upper = make([]float64, len(values))
	lower = make([]float64, len(values))
	for i := range values {
		upper[i] = mid[i] + multiplier*std[i]
		lower[i] = mid[i] - multiplier*std[i]
	}
	return upper, lower
}

// PercentB is the position of value between lower (0) and upper (100).
func PercentB(value, upper, lower float64) float64 {
	return (value - lower) * 100 / (upper - lower)
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// sum calculates the sum of a slice of float64
func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}
