package features

import "math"

// Rolling aggregates over trailing windows of exactly w observations.
// A window shorter than w, or containing a NaN, yields NaN.

// RollingMean returns the trailing w-window mean of x.
func RollingMean(x []float64, w int) []float64 {
	return rolling(x, w, func(win []float64) float64 {
		sum := 0.0
		for _, v := range win {
			sum += v
		}
		return sum / float64(len(win))
	})
}

// RollingSum returns the trailing w-window sum of x.
func RollingSum(x []float64, w int) []float64 {
	return rolling(x, w, func(win []float64) float64 {
		sum := 0.0
		for _, v := range win {
			sum += v
		}
		return sum
	})
}

// RollingPopStd returns the trailing w-window population standard
// deviation (ddof=0). A window of identical values is exactly 0.
func RollingPopStd(x []float64, w int) []float64 {
	return rolling(x, w, func(win []float64) float64 {
		if constant(win) {
			return 0
		}
		mean := 0.0
		for _, v := range win {
			mean += v
		}
		mean /= float64(len(win))

		ss := 0.0
		for _, v := range win {
			d := v - mean
			ss += d * d
		}
		return math.Sqrt(ss / float64(len(win)))
	})
}

// PctChange returns (x[i]-x[i-h])/x[i-h]; the first h values are NaN.
func PctChange(x []float64, h int) []float64 {
	out := nanSlice(len(x))
	if h < 1 {
		return out
	}
	for i := h; i < len(x); i++ {
		out[i] = (x[i] - x[i-h]) / x[i-h]
	}
	return out
}

// ForwardReturn returns (x[i+h]-x[i])/x[i]; the last h values are NaN.
// Value i only depends on x[i] and x[i+h].
func ForwardReturn(x []float64, h int) []float64 {
	out := nanSlice(len(x))
	if h < 1 {
		return out
	}
	for i := 0; i+h < len(x); i++ {
		out[i] = (x[i+h] - x[i]) / x[i]
	}
	return out
}

func rolling(x []float64, w int, agg func([]float64) float64) []float64 {
	out := nanSlice(len(x))
	if w < 1 {
		return out
	}
	for i := w - 1; i < len(x); i++ {
		win := x[i-w+1 : i+1]
		if hasNaN(win) {
			continue
		}
		out[i] = agg(win)
	}
	return out
}

func hasNaN(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func constant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
