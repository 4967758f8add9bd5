package stats

import "math"

// seasonalStrengthThreshold is the F_S value from which a seasonal
// difference is suggested.
const seasonalStrengthThreshold = 0.64

// NDiffs returns the number of first differences, at most maxD, after which
// the KPSS test no longer rejects level stationarity.
func NDiffs(values []float64, maxD int) int {
	if maxD <= 0 {
		maxD = 2
	}

	current := values
	for d := 0; d < maxD; d++ {
		if res := KPSS(current, "c", 0); res != nil && res.IsStationary {
			return d
		}
		current = difference(current, 1)
		if len(current) < 10 {
			return d
		}
	}
	return maxD
}

// NSDiffs returns the number of seasonal differences, at most maxD, needed
// to bring the seasonal strength below 0.64.
func NSDiffs(values []float64, period, maxD int) int {
	if maxD <= 0 {
		maxD = 1
	}
	if period <= 1 || len(values) < 2*period {
		return 0
	}

	current := values
	for d := 0; d < maxD; d++ {
		if SeasonalStrength(current, period) < seasonalStrengthThreshold {
			return d
		}
		current = difference(current, period)
		if len(current) < 2*period {
			return d
		}
	}
	return maxD
}

// SeasonalStrength is F_S = max(0, 1 - Var(R) / Var(S + R)) from a classical
// additive decomposition.
func SeasonalStrength(values []float64, period int) float64 {
	dec := Decompose(values, period)
	if dec == nil {
		return 0
	}

	sr := make([]float64, len(dec.Residual))
	for i := range sr {
		sr[i] = dec.Seasonal[i] + dec.Residual[i]
	}

	varSR := variance(sr)
	if varSR == 0 {
		return 0
	}
	return math.Max(0, 1-variance(dec.Residual)/varSR)
}

func difference(values []float64, lag int) []float64 {
	if len(values) <= lag {
		return nil
	}
	out := make([]float64, len(values)-lag)
	for i := lag; i < len(values); i++ {
		out[i-lag] = values[i] - values[i-lag]
	}
	return out
}

// variance is the sample variance ignoring NaN values.
func variance(data []float64) float64 {
	n := 0
	sum := 0.0
	for _, v := range data {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n < 2 {
		return 0
	}
	mean := sum / float64(n)

	sumSq := 0.0
	for _, v := range data {
		if !math.IsNaN(v) {
			d := v - mean
			sumSq += d * d
		}
	}
	return sumSq / float64(n-1)
}
