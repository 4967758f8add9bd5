// Package stats provides the residual diagnostics and information criteria
// used when comparing fitted models.
package stats

import "math"

// ACF calculates the autocorrelation function of values for lags 0..maxLag.
// It returns nil for constant input or a negative lag.
func ACF(values []float64, maxLag int) []float64 {
	n := len(values)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	denom := 0.0
	for _, v := range values {
		d := v - mean
		denom += d * d
	}
	if denom == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (values[i] - mean) * (values[i-k] - mean)
		}
		acf[k] = sum / denom
	}

	return acf
}

// PACF calculates the partial autocorrelation function with the
// Durbin-Levinson recursion. Index 0 is always 1.
func PACF(values []float64, maxLag int) []float64 {
	if maxLag >= len(values) {
		maxLag = len(values) - 1
	}
	if maxLag < 1 {
		return nil
	}

	acf := ACF(values, maxLag)
	if acf == nil {
		return nil
	}

	pacf := make([]float64, maxLag+1)
	pacf[0] = 1

	prev := make([]float64, maxLag+1)
	cur := make([]float64, maxLag+1)
	prev[1] = acf[1]
	pacf[1] = acf[1]

	for k := 2; k <= maxLag; k++ {
		num := acf[k]
		den := 1.0
		for j := 1; j < k; j++ {
			num -= prev[j] * acf[k-j]
			den -= prev[j] * acf[j]
		}
		if den == 0 {
			break
		}

		cur[k] = num / den
		for j := 1; j < k; j++ {
			cur[j] = prev[j] - cur[k]*prev[k-j]
		}
		pacf[k] = cur[k]
		prev, cur = cur, prev
	}

	return pacf
}

// Correlogram is an ACF with its approximate 95% white-noise band.
type Correlogram struct {
	Values     []float64
	ConfBounds float64 // ±1.96/sqrt(n)
}

// ACFWithConfidence calculates the ACF together with its confidence band.
func ACFWithConfidence(values []float64, maxLag int) *Correlogram {
	acf := ACF(values, maxLag)
	if acf == nil {
		return nil
	}
	return &Correlogram{
		Values:     acf,
		ConfBounds: 1.96 / math.Sqrt(float64(len(values))),
	}
}

// PACFWithConfidence calculates the PACF with the same band as the ACF.
func PACFWithConfidence(values []float64, maxLag int) *Correlogram {
	pacf := PACF(values, maxLag)
	if pacf == nil {
		return nil
	}
	return &Correlogram{
		Values:     pacf,
		ConfBounds: 1.96 / math.Sqrt(float64(len(values))),
	}
}

// SignificantLags returns the lags (excluding 0) outside the band.
func (c *Correlogram) SignificantLags() []int {
	if c == nil {
		return nil
	}
	var lags []int
	for i := 1; i < len(c.Values); i++ {
		if math.Abs(c.Values[i]) > c.ConfBounds {
			lags = append(lags, i)
		}
	}
	return lags
}
