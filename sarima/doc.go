// Package sarima fits Seasonal ARIMA models by conditional sum of squares.
//
// A SARIMA(p,d,q)(P,D,Q)[m] model differences the series d times at lag 1 and
// D times at lag m, then fits additive AR and MA terms at lags 1..p, 1..q and
// at seasonal lags m..Pm, m..Qm.
//
// # Basic Usage
//
//	// SARIMA(1,0,0)(1,1,0)[12] for monthly data
//	res, err := sarima.Fit(ctx, series,
//	    sarima.Order{P: 1},
//	    sarima.SeasonalOrder{P: 1, D: 1, M: 12})
//	if err != nil {
//	    return err
//	}
//
//	fc, _ := res.Forecast(24, 0.95)
//	// fc.Point, fc.Lower, fc.Upper, fc.Periods
//
// # Model Comparison
//
// Fitted results carry AIC, AICc and BIC (lower is better). Models with the
// same seasonal order share a likelihood window, so their AICc values are
// directly comparable.
//
// Errors wrap ErrInvalidOrder, ErrInsufficientData, ErrDegenerate or
// ErrNonFinite; all of them mean "this order cannot be estimated on this
// series".
package sarima
