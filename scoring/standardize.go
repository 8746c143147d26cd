package scoring

import "math"

// MeanSigma returns the mean and population standard deviation of values.
func MeanSigma(values []float64) (mean, sigma float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// Standardize rescales raw from a group with the given mean and sigma onto
// the target mean and sigma. A group without spread maps to targetMean.
func Standardize(raw, mean, sigma, targetMean, targetSigma float64) float64 {
	if sigma < PerformanceTolerance {
		return targetMean
	}
	return targetMean + (raw-mean)*targetSigma/sigma
}
