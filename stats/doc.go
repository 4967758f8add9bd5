// Package stats provides residual diagnostics and information criteria.
//
// # Autocorrelation
//
//	acf := stats.ACF(residuals, 24)
//	pacf := stats.PACF(residuals, 24)
//
//	c := stats.ACFWithConfidence(residuals, 24)
//	lags := c.SignificantLags()
//
// # Residual Diagnostics
//
//	lb := stats.LjungBox(residuals, 10, p+q+sp+sq)
//	if lb.WhiteNoise() {
//	    // no evidence of remaining autocorrelation
//	}
//
// # Stationarity
//
//	adf := stats.ADF(values, 0)        // unit root null
//	kpss := stats.KPSS(values, "c", 0) // stationarity null
//	d := stats.NDiffs(values, 2)
//	D := stats.NSDiffs(values, 12, 1)
//
// NSDiffs uses the seasonal strength of a classical decomposition
// (stats.Decompose).
//
// # Information Criteria
//
//	ic := stats.CalculateIC(logLik, n, k)
//	fmt.Printf("AIC %.2f AICc %.2f BIC %.2f\n", ic.AIC, ic.AICc, ic.BIC)
package stats
