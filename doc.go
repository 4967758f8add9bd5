// Package ridecast models monthly bike-share ride counts.
//
// The analysis fits a Holt-Winters exponential smoothing model and a family
// of seasonal ARIMA models to a monthly series, picks the seasonal ARIMA
// order with the lowest AICc over a small (p, q) grid, and forecasts from
// the chosen model.
//
// # Packages
//
//   - timeseries: monthly series, CSV loading and differencing
//   - stats: ACF/PACF, Ljung-Box, stationarity tests, decomposition, AICc
//   - holtwinters: additive and multiplicative Holt-Winters
//   - sarima: SARIMA(p,d,q)(P,D,Q)[m] by conditional sum of squares
//   - orderselect: AICc grid search over non-seasonal orders
//   - analysis: the end-to-end pipeline
//   - plot, store, metrics: charts, run history and Prometheus metrics
//   - config, logging: YAML configuration and slog setup
//
// # Quick Start
//
//	series, _ := timeseries.LoadCSV("rides.csv", timeseries.CSVOptions{
//	    HasHeader:  true,
//	    ValueIndex: 1,
//	    Start:      time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC),
//	})
//
//	sel, err := orderselect.SelectBestOrder(ctx, series, orderselect.DefaultGrid(), sarima.Fitter{})
//	if err != nil {
//	    return err
//	}
//	fmt.Print(sel.Table)
//
//	model, _ := sarima.Fit(ctx, series, sel.Order, sel.Seasonal)
//	fc, _ := model.Forecast(24, 0.95)
//
// The ridecast command in cmd/ridecast runs the whole pipeline from a
// YAML config file.
package ridecast
