// Package holtwinters fits Holt-Winters exponential smoothing models.
//
// The default configuration is additive trend and additive seasonality with
// period 12:
//
//	res, err := holtwinters.Fit(ctx, series, holtwinters.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("alpha=%.3f beta=%.3f gamma=%.3f\n",
//	    res.Params.Alpha, res.Params.Beta, res.Params.Gamma)
//
// The result exposes the one-step fitted values and the filtered level,
// slope and seasonal states, which together decompose the series.
//
// Damped trends and multiplicative components are selected through Config:
//
//	cfg := holtwinters.Config{
//	    SeasonalPeriods: 12,
//	    Trend:           holtwinters.Additive,
//	    Seasonal:        holtwinters.Multiplicative,
//	    Damped:          true,
//	}
package holtwinters
