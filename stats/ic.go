package stats

import "math"

// InformationCriteria holds the likelihood-based scores of a fitted model.
type InformationCriteria struct {
	AIC    float64
	AICc   float64
	BIC    float64
	LogLik float64
}

// AICc calculates the corrected Akaike Information Criterion,
// AIC + 2k(k+1)/(n-k-1). It is +Inf when n-k-1 <= 0.
func AICc(aic float64, nObs, nParams int) float64 {
	k := float64(nParams)
	n := float64(nObs)
	if n-k-1 <= 0 {
		return math.Inf(1)
	}
	return aic + 2*k*(k+1)/(n-k-1)
}

// CalculateIC calculates AIC, AICc and BIC from a log-likelihood.
func CalculateIC(logLik float64, nObs, nParams int) InformationCriteria {
	k := float64(nParams)
	aic := -2*logLik + 2*k
	return InformationCriteria{
		AIC:    aic,
		AICc:   AICc(aic, nObs, nParams),
		BIC:    -2*logLik + k*math.Log(float64(nObs)),
		LogLik: logLik,
	}
}

// GaussianLogLik is the concentrated Gaussian log-likelihood of n residuals
// with sum of squares sse, using the MLE variance sse/n.
func GaussianLogLik(sse float64, n int) float64 {
	if n <= 0 || sse <= 0 {
		return math.Inf(-1)
	}
	nf := float64(n)
	return -nf / 2 * (math.Log(2*math.Pi) + math.Log(sse/nf) + 1)
}

// NormalQuantile returns z such that P(Z <= z) = p for a standard normal,
// using the Abramowitz-Stegun rational approximation.
func NormalQuantile(p float64) float64 {
	if p <= 0 || p >= 1 {
		return math.NaN()
	}
	if p < 0.5 {
		return -NormalQuantile(1 - p)
	}

	t := math.Sqrt(-2 * math.Log(1-p))
	c0, c1, c2 := 2.515517, 0.802853, 0.010328
	d1, d2, d3 := 1.432788, 0.189269, 0.001308

	return t - (c0+c1*t+c2*t*t)/(1+d1*t+d2*t*t+d3*t*t*t)
}
