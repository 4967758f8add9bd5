// Package analysis runs the monthly ride analysis end to end.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sartorproj/ridecast/config"
	"github.com/sartorproj/ridecast/holtwinters"
	"github.com/sartorproj/ridecast/metrics"
	"github.com/sartorproj/ridecast/orderselect"
	"github.com/sartorproj/ridecast/sarima"
	"github.com/sartorproj/ridecast/stats"
	"github.com/sartorproj/ridecast/store"
	"github.com/sartorproj/ridecast/timeseries"
)

// Deps are the collaborators of a run. Nil Metrics and Store disable
// recording and persistence; a nil Fitter uses sarima.Fitter.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Recorder
	Store   *store.Store
	Fitter  orderselect.Fitter
	Now     func() time.Time
}

func (d *Deps) defaults() {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Fitter == nil {
		d.Fitter = sarima.Fitter{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// Stationarity summarises unit root and seasonality diagnostics of the raw
// series.
type Stationarity struct {
	ADF              *stats.ADFResult
	KPSS             *stats.KPSSResult
	NDiffs           int
	NSDiffs          int
	SeasonalStrength float64
}

// Report is everything a run produced.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Source    string

	Series       *timeseries.Series
	Stationarity Stationarity

	HoltWinters         *holtwinters.Result
	HoltWintersForecast *holtwinters.Forecast

	// Selection is set even when no order was viable; the fields below are
	// nil in that case.
	Selection    *orderselect.Selection
	SARIMA       *sarima.Result
	Summary      *sarima.Summary
	Forecast     *sarima.Forecast
	ResidualACF  *stats.Correlogram
	ResidualPACF *stats.Correlogram

	Charts []string
}

// LoadSeries reads and validates the configured series.
func LoadSeries(cfg *config.Config) (*timeseries.Series, error) {
	opts, err := cfg.CSVOptions()
	if err != nil {
		return nil, fmt.Errorf("data.start: %w", err)
	}
	opts.Name = filepath.Base(cfg.Data.Path)

	series, err := timeseries.LoadCSV(cfg.Data.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.Data.Path, err)
	}
	if err := series.Validate(max(cfg.Data.Periods, 0)); err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.Data.Path, err)
	}
	return series, nil
}

// Select runs the order search on series with the configured grid.
func Select(ctx context.Context, cfg *config.Config, series *timeseries.Series, deps Deps) (*orderselect.Selection, error) {
	deps.defaults()
	opts := []orderselect.Option{
		orderselect.WithWorkers(cfg.Model.Workers),
		orderselect.WithLogger(deps.Logger),
	}
	if deps.Metrics != nil {
		opts = append(opts, orderselect.WithObserver(deps.Metrics))
	}
	return orderselect.SelectBestOrder(ctx, series, cfg.Grid(), deps.Fitter, opts...)
}

// Run executes the full analysis: load, Holt-Winters, order selection, the
// chosen seasonal ARIMA with forecast and diagnostics, then charts,
// persistence and metrics as configured.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (*Report, error) {
	deps.defaults()
	log := deps.Logger

	started := deps.Now()
	rep := &Report{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Source:    cfg.Data.Path,
	}
	log = log.With("run", rep.RunID)
	deps.Logger = log

	series, err := LoadSeries(cfg)
	if err != nil {
		return nil, err
	}
	rep.Series = series
	log.Info("series loaded",
		"source", cfg.Data.Path,
		"observations", series.Len(),
		"start", series.Start().Format("2006-01"),
		"end", series.End().Format("2006-01"))

	rep.Stationarity = diagnose(series, cfg.Model.SeasonalPeriod)
	log.Info("stationarity", rep.Stationarity.logAttrs()...)

	hwCfg, err := cfg.HoltWinters()
	if err != nil {
		return nil, err
	}
	t0 := time.Now()
	hw, err := holtwinters.Fit(ctx, series, hwCfg)
	if err != nil {
		return nil, fmt.Errorf("holt-winters: %w", err)
	}
	observeFit(deps.Metrics, "holtwinters", time.Since(t0))
	rep.HoltWinters = hw
	log.Info("holt-winters fitted",
		"alpha", hw.Params.Alpha,
		"beta", hw.Params.Beta,
		"gamma", hw.Params.Gamma,
		"phi", hw.Params.Phi,
		"aicc", hw.AICc)

	if rep.HoltWintersForecast, err = hw.Forecast(cfg.Forecast.Horizon, cfg.Forecast.Confidence); err != nil {
		return nil, fmt.Errorf("holt-winters forecast: %w", err)
	}

	sel, err := Select(ctx, cfg, series, deps)
	if err != nil {
		err = fmt.Errorf("order selection: %w", err)
		if sel == nil || !errors.Is(err, orderselect.ErrNoViableModel) {
			return nil, err
		}
		// Keep the all-unavailable table so it can be shown and stored.
		rep.Selection = sel
		log.Warn("no viable order", "cells", len(sel.Table.Scores))
		if ferr := finish(ctx, cfg, deps, rep, started); ferr != nil {
			return rep, errors.Join(err, ferr)
		}
		return rep, err
	}
	rep.Selection = sel

	t0 = time.Now()
	model, err := sarima.Fit(ctx, series, sel.Order, sel.Seasonal)
	if err != nil {
		return nil, fmt.Errorf("refit %s: %w", sarima.Spec(sel.Order, sel.Seasonal), err)
	}
	observeFit(deps.Metrics, "sarima", time.Since(t0))
	rep.SARIMA = model
	rep.Summary = model.Summary()

	if rep.Forecast, err = model.Forecast(cfg.Forecast.Horizon, cfg.Forecast.Confidence); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}

	resid := model.ModelResiduals()
	lags := min(2*model.Seasonal.M, len(resid)-1)
	rep.ResidualACF = stats.ACFWithConfidence(resid, lags)
	rep.ResidualPACF = stats.PACFWithConfidence(resid, lags)

	attrs := []any{
		"model", model.Spec(),
		"acf_significant_lags", rep.ResidualACF.SignificantLags(),
		"pacf_significant_lags", rep.ResidualPACF.SignificantLags(),
	}
	if lb := rep.Summary.LjungBox; lb != nil {
		attrs = append(attrs,
			"ljung_box", lb.Statistic,
			"p_value", lb.PValue,
			"white_noise", lb.WhiteNoise())
	}
	log.Info("residual diagnostics", attrs...)

	if cfg.Output.Dir != "" {
		if rep.Charts, err = renderCharts(cfg.Output.Dir, rep); err != nil {
			return nil, err
		}
		log.Info("charts written", "dir", cfg.Output.Dir, "count", len(rep.Charts))
	}

	if err := finish(ctx, cfg, deps, rep, started); err != nil {
		return nil, err
	}

	log.Info("analysis complete",
		"model", model.Spec(),
		"aicc", sel.Best.AICc,
		"duration", rep.Duration)
	return rep, nil
}

// finish stamps the duration, then persists the run and records metrics as
// configured.
func finish(ctx context.Context, cfg *config.Config, deps Deps, rep *Report, started time.Time) error {
	rep.Duration = deps.Now().Sub(started)

	if deps.Store != nil {
		if err := deps.Store.SaveRun(ctx, runRecord(rep)); err != nil {
			return err
		}
		deps.Logger.Info("run saved")
	}

	if deps.Metrics != nil {
		aicc := math.NaN()
		if rep.Selection.Best.Available {
			aicc = rep.Selection.Best.AICc
		}
		deps.Metrics.RunCompleted(started.Add(rep.Duration), rep.Series.Len(), aicc)
		if path := cfg.Output.MetricsTextfile; path != "" {
			if err := deps.Metrics.WriteTextfile(path); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
		}
	}
	return nil
}

func diagnose(series *timeseries.Series, period int) Stationarity {
	v := series.Values
	return Stationarity{
		ADF:              stats.ADF(v, 0),
		KPSS:             stats.KPSS(v, "c", 0),
		NDiffs:           stats.NDiffs(v, 2),
		NSDiffs:          stats.NSDiffs(v, period, 1),
		SeasonalStrength: stats.SeasonalStrength(v, period),
	}
}

func (s Stationarity) logAttrs() []any {
	attrs := []any{
		"ndiffs", s.NDiffs,
		"nsdiffs", s.NSDiffs,
		"seasonal_strength", s.SeasonalStrength,
	}
	if s.ADF != nil {
		attrs = append(attrs,
			"adf", s.ADF.Statistic,
			"adf_p", s.ADF.PValue,
			"adf_stationary", s.ADF.IsStationary)
	}
	if s.KPSS != nil {
		attrs = append(attrs,
			"kpss", s.KPSS.Statistic,
			"kpss_p", s.KPSS.PValue,
			"kpss_stationary", s.KPSS.IsStationary)
	}
	return attrs
}

func observeFit(m *metrics.Recorder, model string, d time.Duration) {
	if m != nil {
		m.ObserveFit(model, d)
	}
}

// runRecord maps a report onto its stored form. Runs without a viable
// order keep their grid but have no model, best order or forecast.
func runRecord(rep *Report) store.Run {
	sel := rep.Selection
	run := store.Run{
		ID:        rep.RunID,
		StartedAt: rep.StartedAt,
		Source:    rep.Source,
		NObs:      rep.Series.Len(),
		BestP:     -1,
		BestQ:     -1,
		BestAICc:  math.NaN(),
		HWAlpha:   rep.HoltWinters.Params.Alpha,
		HWBeta:    rep.HoltWinters.Params.Beta,
		HWGamma:   rep.HoltWinters.Params.Gamma,
		LjungBoxP: math.NaN(),
		ADFP:      math.NaN(),
		KPSSP:     math.NaN(),
		Duration:  rep.Duration,
	}
	if sel.Best.Available {
		run.BestP, run.BestQ, run.BestAICc = sel.BestP, sel.BestQ, sel.Best.AICc
	}
	if rep.SARIMA != nil {
		run.Model = rep.SARIMA.Spec()
	}
	if rep.Summary != nil && rep.Summary.LjungBox != nil {
		run.LjungBoxP = rep.Summary.LjungBox.PValue
	}
	if adf := rep.Stationarity.ADF; adf != nil {
		run.ADFP = adf.PValue
	}
	if kpss := rep.Stationarity.KPSS; kpss != nil {
		run.KPSSP = kpss.PValue
	}

	for _, s := range sel.Table.Scores {
		gs := store.GridScore{P: s.P, Q: s.Q, AICc: s.AICc, Available: s.Available}
		if s.Err != nil {
			gs.Error = s.Err.Error()
		}
		run.Scores = append(run.Scores, gs)
	}

	if fc := rep.Forecast; fc != nil {
		for i := range fc.Point {
			run.Forecasts = append(run.Forecasts, store.ForecastPoint{
				Period: fc.Periods[i],
				Point:  fc.Point[i],
				Lower:  fc.Lower[i],
				Upper:  fc.Upper[i],
			})
		}
	}
	return run
}
