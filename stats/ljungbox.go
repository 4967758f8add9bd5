package stats

import "math"

// LjungBoxResult represents the result of a Ljung-Box test.
type LjungBoxResult struct {
	Statistic float64
	PValue    float64
	Lags      int
	DOF       int
}

// WhiteNoise reports whether the test fails to reject "no autocorrelation"
// at the 5% level.
func (r *LjungBoxResult) WhiteNoise() bool {
	return r.PValue > 0.05
}

// LjungBox tests residuals for autocorrelation up to lag h. fitdf is the
// number of estimated ARMA coefficients.
func LjungBox(residuals []float64, lags, fitdf int) *LjungBoxResult {
	n := len(residuals)
	if n < 10 || lags < 1 {
		return nil
	}
	if lags >= n {
		lags = n - 1
	}

	acf := ACF(residuals, lags)
	if acf == nil {
		return nil
	}

	q := 0.0
	for k := 1; k <= lags; k++ {
		q += (acf[k] * acf[k]) / float64(n-k)
	}
	q *= float64(n * (n + 2))

	dof := max(lags-fitdf, 1)

	return &LjungBoxResult{
		Statistic: q,
		PValue:    1 - chiSquaredCDF(q, dof),
		Lags:      lags,
		DOF:       dof,
	}
}

// chiSquaredCDF is P(k/2, x/2), the regularized lower incomplete gamma.
func chiSquaredCDF(x float64, k int) float64 {
	if x <= 0 {
		return 0
	}
	a := float64(k) / 2
	x /= 2
	if x < a+1 {
		return gammaIncSeries(a, x)
	}
	return 1 - gammaIncCF(a, x)
}

// gammaIncSeries is the regularized lower incomplete gamma by series expansion.
func gammaIncSeries(a, x float64) float64 {
	const (
		maxIter = 200
		eps     = 1e-12
	)

	lg, _ := math.Lgamma(a)
	ap := a
	sum := 1.0 / a
	del := sum
	for n := 1; n < maxIter; n++ {
		ap++
		del *= x / ap
		sum += del
		if math.Abs(del) < math.Abs(sum)*eps {
			break
		}
	}
	return sum * math.Exp(-x+a*math.Log(x)-lg)
}

// gammaIncCF is the regularized upper incomplete gamma by continued fraction.
func gammaIncCF(a, x float64) float64 {
	const (
		maxIter = 200
		eps     = 1e-12
		fpmin   = 1e-300
	)

	lg, _ := math.Lgamma(a)
	b := x + 1 - a
	c := 1.0 / fpmin
	d := 1.0 / b
	h := d
	for i := 1; i < maxIter; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = b + an/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1.0 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}
	return math.Exp(-x+a*math.Log(x)-lg) * h
}
