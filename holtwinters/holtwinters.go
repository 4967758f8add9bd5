// Package holtwinters implements Holt-Winters exponential smoothing with
// optional damped trend and additive or multiplicative components.
package holtwinters

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sartorproj/ridecast/timeseries"
)

var (
	ErrInvalidConfig    = errors.New("invalid exponential smoothing config")
	ErrInsufficientData = errors.New("insufficient data for exponential smoothing")
	ErrNonPositive      = errors.New("multiplicative component needs strictly positive data")
	ErrNotFitted        = errors.New("model not fitted")
)

// Component selects how a trend or seasonal component enters the model.
type Component string

const (
	None           Component = "none"
	Additive       Component = "add"
	Multiplicative Component = "mul"
)

// ParseComponent accepts "", "none", "add", "additive", "mul" and
// "multiplicative".
func ParseComponent(s string) (Component, error) {
	switch s {
	case "", "none":
		return None, nil
	case "add", "additive":
		return Additive, nil
	case "mul", "multiplicative":
		return Multiplicative, nil
	}
	return "", fmt.Errorf("%w: unknown component %q", ErrInvalidConfig, s)
}

// Config describes the model structure. Smoothing parameters are estimated.
type Config struct {
	SeasonalPeriods int
	Trend           Component
	Seasonal        Component
	Damped          bool
}

// DefaultConfig is additive trend and additive yearly seasonality on monthly data.
func DefaultConfig() Config {
	return Config{
		SeasonalPeriods: 12,
		Trend:           Additive,
		Seasonal:        Additive,
	}
}

func (c Config) validate() error {
	for _, comp := range []Component{c.Trend, c.Seasonal} {
		switch comp {
		case None, Additive, Multiplicative:
		default:
			return fmt.Errorf("%w: unknown component %q", ErrInvalidConfig, comp)
		}
	}
	if c.Seasonal != None && c.SeasonalPeriods < 2 {
		return fmt.Errorf("%w: seasonal period %d", ErrInvalidConfig, c.SeasonalPeriods)
	}
	if c.Damped && c.Trend == None {
		return fmt.Errorf("%w: damping requires a trend", ErrInvalidConfig)
	}
	return nil
}

func (c Config) period() int {
	if c.Seasonal == None {
		return 1
	}
	return c.SeasonalPeriods
}

// Params are the smoothing parameters and initial states.
type Params struct {
	Alpha float64 // level
	Beta  float64 // trend, zero without a trend
	Gamma float64 // seasonal, zero without seasonality
	Phi   float64 // damping, one when undamped

	InitialLevel    float64
	InitialTrend    float64
	InitialSeasonal []float64
}

// Result is a fitted Holt-Winters model.
type Result struct {
	Config Config
	Params Params

	FittedValues []float64 // one-step predictions
	Residuals    []float64
	Level        []float64 // level state after each observation
	Slope        []float64 // trend state after each observation
	Season       []float64 // seasonal state after each observation

	SSE  float64
	AIC  float64
	AICc float64
	BIC  float64

	series *timeseries.Series
}

// Fit estimates smoothing parameters by minimising the one-step SSE.
func Fit(ctx context.Context, series *timeseries.Series, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	y := series.Values
	m := cfg.period()
	need := 2 * m
	if cfg.Seasonal == None {
		need = 4
	}
	if len(y) < need {
		return nil, fmt.Errorf("%w: need %d observations, got %d", ErrInsufficientData, need, len(y))
	}
	if cfg.Trend == Multiplicative || cfg.Seasonal == Multiplicative {
		for _, v := range y {
			if v <= 0 {
				return nil, ErrNonPositive
			}
		}
	}

	s := &smoother{cfg: cfg, y: y, m: m}
	s.initStates()
	if err := s.estimate(ctx); err != nil {
		return nil, err
	}

	r := &Result{
		Config:       cfg,
		FittedValues: make([]float64, len(y)),
		Residuals:    make([]float64, len(y)),
		Level:        make([]float64, len(y)),
		Slope:        make([]float64, len(y)),
		Season:       make([]float64, len(y)),
		series:       series,
	}
	r.SSE = s.run(s.p, r)
	r.Params = s.p
	r.Params.InitialSeasonal = append([]float64(nil), s.p.InitialSeasonal...)
	r.informationCriteria(s.numParams())

	if math.IsNaN(r.SSE) || math.IsInf(r.SSE, 0) {
		return nil, fmt.Errorf("%w: non-finite SSE", ErrInvalidConfig)
	}
	return r, nil
}

// informationCriteria follows the usual exponential smoothing convention
// with the concentrated likelihood n*log(SSE/n).
func (r *Result) informationCriteria(k int) {
	n := float64(len(r.Residuals))
	kf := float64(k)
	base := n * math.Log(r.SSE/n)
	r.AIC = base + 2*kf
	r.BIC = base + kf*math.Log(n)
	if dof := n - kf - 3; dof > 0 {
		r.AICc = r.AIC + 2*(kf+2)*(kf+3)/dof
	} else {
		r.AICc = math.Inf(1)
	}
}

// Sigma2 returns the residual variance adjusted for estimated parameters.
func (r *Result) Sigma2(k int) float64 {
	n := len(r.Residuals)
	if n-k <= 0 {
		return r.SSE / float64(n)
	}
	return r.SSE / float64(n-k)
}

type smoother struct {
	cfg Config
	y   []float64
	m   int
	p   Params
}

func (s *smoother) numParams() int {
	k := 2 // alpha, initial level
	if s.cfg.Trend != None {
		k += 2
	}
	if s.cfg.Damped {
		k++
	}
	if s.cfg.Seasonal != None {
		k += 1 + s.m
	}
	return k
}

// initStates uses the first two seasons: level is the first season's mean,
// trend the per-period change between season means, seasonals the
// deviations (or ratios) from the first mean.
func (s *smoother) initStates() {
	m := s.m
	y := s.y
	first := avg(y[:m])
	second := avg(y[m : 2*m])
	if s.cfg.Seasonal == None {
		first = y[0]
		second = y[1]
	}

	s.p.InitialLevel = first
	switch s.cfg.Trend {
	case Additive:
		s.p.InitialTrend = (second - first) / float64(m)
	case Multiplicative:
		s.p.InitialTrend = math.Pow(second/first, 1/float64(m))
	}

	s.p.InitialSeasonal = nil
	switch s.cfg.Seasonal {
	case Additive:
		s.p.InitialSeasonal = make([]float64, m)
		for i := range m {
			s.p.InitialSeasonal[i] = y[i] - first
		}
	case Multiplicative:
		s.p.InitialSeasonal = make([]float64, m)
		for i := range m {
			s.p.InitialSeasonal[i] = y[i] / first
		}
	}
}

// trendStep combines a level and trend h steps ahead.
func (s *smoother) trendStep(l, b float64, h int, phi float64) float64 {
	switch s.cfg.Trend {
	case Additive:
		return l + dampedSum(phi, h)*b
	case Multiplicative:
		return l * math.Pow(b, dampedSum(phi, h))
	}
	return l
}

func (s *smoother) seasonApply(x, season float64) float64 {
	switch s.cfg.Seasonal {
	case Additive:
		return x + season
	case Multiplicative:
		return x * season
	}
	return x
}

func (s *smoother) seasonRemove(y, season float64) float64 {
	switch s.cfg.Seasonal {
	case Additive:
		return y - season
	case Multiplicative:
		return y / season
	}
	return y
}

// run filters the series with p and returns the SSE. When out is non-nil the
// fitted values, residuals and states are recorded.
func (s *smoother) run(p Params, out *Result) float64 {
	m := s.m
	l := p.InitialLevel
	b := p.InitialTrend
	season := make([]float64, m)
	if p.InitialSeasonal != nil {
		copy(season, p.InitialSeasonal)
	}

	sse := 0.0
	for t, y := range s.y {
		idx := t % m
		base := s.trendStep(l, b, 1, p.Phi)
		pred := s.seasonApply(base, season[idx])
		e := y - pred
		sse += e * e

		prevL := l
		l = p.Alpha*s.seasonRemove(y, season[idx]) + (1-p.Alpha)*base
		switch s.cfg.Trend {
		case Additive:
			b = p.Beta*(l-prevL) + (1-p.Beta)*p.Phi*b
		case Multiplicative:
			b = p.Beta*(l/prevL) + (1-p.Beta)*math.Pow(b, p.Phi)
		}
		switch s.cfg.Seasonal {
		case Additive:
			season[idx] = p.Gamma*(y-base) + (1-p.Gamma)*season[idx]
		case Multiplicative:
			season[idx] = p.Gamma*(y/base) + (1-p.Gamma)*season[idx]
		}

		if out != nil {
			out.FittedValues[t] = pred
			out.Residuals[t] = e
			out.Level[t] = l
			out.Slope[t] = b
			out.Season[t] = season[idx]
		}
	}
	return sse
}

// dampedSum is phi + phi^2 + ... + phi^h, or h when phi is one.
func dampedSum(phi float64, h int) float64 {
	if phi >= 1 {
		return float64(h)
	}
	return phi * (1 - math.Pow(phi, float64(h))) / (1 - phi)
}

func avg(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
