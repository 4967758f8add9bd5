package stats

import "math"

// Decomposition is a classical additive decomposition Y = T + S + R. Trend
// and Residual are NaN where the centred moving average is undefined.
type Decomposition struct {
	Trend    []float64
	Seasonal []float64
	Residual []float64
	Period   int
}

// Decompose splits values into trend, seasonal and residual components using
// a centred moving average of length period. Returns nil when fewer than two
// full periods are available.
func Decompose(values []float64, period int) *Decomposition {
	n := len(values)
	if period < 2 || n < 2*period {
		return nil
	}

	trend := movingAverage(values, period)

	// Average the detrended values at each position in the cycle.
	pattern := make([]float64, period)
	counts := make([]int, period)
	for i, v := range values {
		if math.IsNaN(trend[i]) {
			continue
		}
		pattern[i%period] += v - trend[i]
		counts[i%period]++
	}
	for i := range pattern {
		if counts[i] > 0 {
			pattern[i] /= float64(counts[i])
		}
	}

	// Seasonal effects sum to zero over a cycle.
	center := 0.0
	for _, v := range pattern {
		center += v
	}
	center /= float64(period)
	for i := range pattern {
		pattern[i] -= center
	}

	seasonal := make([]float64, n)
	residual := make([]float64, n)
	for i, v := range values {
		seasonal[i] = pattern[i%period]
		residual[i] = v - trend[i] - seasonal[i]
	}

	return &Decomposition{
		Trend:    trend,
		Seasonal: seasonal,
		Residual: residual,
		Period:   period,
	}
}

// movingAverage is the centred moving average of length period, using the
// 2 x period form for even periods.
func movingAverage(values []float64, period int) []float64 {
	n := len(values)
	trend := make([]float64, n)
	for i := range trend {
		trend[i] = math.NaN()
	}

	half := period / 2
	for i := half; i < n-half; i++ {
		sum := 0.0
		if period%2 == 0 {
			sum += 0.5 * (values[i-half] + values[i+half])
			for j := i - half + 1; j < i+half; j++ {
				sum += values[j]
			}
		} else {
			for j := i - half; j <= i+half; j++ {
				sum += values[j]
			}
		}
		trend[i] = sum / float64(period)
	}
	return trend
}
