// Package sarima implements Seasonal ARIMA (SARIMA) models.
package sarima

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sartorproj/ridecast/stats"
	"github.com/sartorproj/ridecast/timeseries"
)

var (
	// ErrInvalidOrder is returned for negative orders or a missing period.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrInsufficientData is returned when too few observations remain after
	// differencing to estimate the model.
	ErrInsufficientData = errors.New("insufficient data for order")
	// ErrDegenerate is returned when the differenced series is constant.
	ErrDegenerate = errors.New("degenerate differenced series")
	// ErrNonFinite is returned when estimation produced a non-finite
	// likelihood or information criterion.
	ErrNonFinite = errors.New("non-finite estimate")
	// ErrNotFitted is returned by methods that need a fitted model.
	ErrNotFitted = errors.New("model not fitted")
)

// Optimizer settings for conditional sum of squares estimation.
const (
	maxIter      = 300
	tolerance    = 1e-9
	learningRate = 0.01
	momentum     = 0.9
	decay        = 0.99
	patience     = 25
	coeffBound   = 0.99
)

// Result is a fitted SARIMA model.
type Result struct {
	Order    Order
	Seasonal SeasonalOrder

	AR  []float64 // non-seasonal AR coefficients
	MA  []float64 // non-seasonal MA coefficients
	SAR []float64 // seasonal AR coefficients
	SMA []float64 // seasonal MA coefficients

	Mean   float64 // mean of the differenced series
	Sigma2 float64 // innovation variance
	NObs   int     // observations entering the likelihood
	Burn   int     // leading observations without a one-step prediction

	AIC    float64
	AICc   float64
	BIC    float64
	LogLik float64

	series    *timeseries.Series
	levels    [][]float64 // levels[0] is the series, levels[i] after the i-th difference
	diffScale float64
	diffResid []float64 // residuals on the differenced, standardized scale
	fitted    []float64
	residuals []float64
}

// Fit estimates a SARIMA(p,d,q)(P,D,Q)[m] model by conditional sum of squares.
// The series is not modified.
func Fit(ctx context.Context, series *timeseries.Series, order Order, seasonal SeasonalOrder) (*Result, error) {
	if err := validateOrder(order, seasonal); err != nil {
		return nil, err
	}

	r := &Result{
		Order:    order,
		Seasonal: seasonal,
		AR:       make([]float64, order.P),
		MA:       make([]float64, order.Q),
		SAR:      make([]float64, seasonal.P),
		SMA:      make([]float64, seasonal.Q),
		series:   series,
	}

	r.levels = make([][]float64, 0, 1+order.D+seasonal.D)
	r.levels = append(r.levels, series.Values)
	cur := series
	for i := 0; i < order.D; i++ {
		cur = cur.Diff()
		r.levels = append(r.levels, cur.Values)
	}
	for i := 0; i < seasonal.D; i++ {
		cur = cur.SeasonalDiff(seasonal.M)
		r.levels = append(r.levels, cur.Values)
	}

	y := cur.Values
	start := lagSpan(order, seasonal)
	k := numParams(order, seasonal)
	if len(y)-start < k+2 {
		return nil, fmt.Errorf("%w %s: %d differenced observations, %d usable", ErrInsufficientData,
			Spec(order, seasonal), len(y), len(y)-start)
	}

	r.Mean = mean(y)
	sd := stddev(y, r.Mean)
	if sd == 0 || math.IsNaN(sd) {
		return nil, fmt.Errorf("%w %s", ErrDegenerate, Spec(order, seasonal))
	}
	r.diffScale = sd

	// Coefficients are scale free, so estimate them on the standardized series.
	z := make([]float64, len(y))
	for i, v := range y {
		z[i] = (v - r.Mean) / sd
	}

	r.initCoeffs(z)
	if err := r.optimizeCSS(ctx, z, start); err != nil {
		return nil, err
	}

	r.diffResid = make([]float64, len(z))
	sseZ := r.css(z, start, r.diffResid)
	sse := sseZ * sd * sd

	r.NObs = len(z) - start
	r.Burn = order.D + seasonal.D*seasonal.M + start
	r.LogLik = stats.GaussianLogLik(sse, r.NObs)
	r.Sigma2 = sse / float64(r.NObs-k)

	ic := stats.CalculateIC(r.LogLik, r.NObs, k)
	r.AIC, r.AICc, r.BIC = ic.AIC, ic.AICc, ic.BIC
	for _, v := range []float64{r.LogLik, r.AICc, r.Sigma2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w %s: loglik=%g aicc=%g", ErrNonFinite, Spec(order, seasonal), r.LogLik, r.AICc)
		}
	}

	r.alignResiduals()
	return r, nil
}

// initCoeffs seeds AR terms from the ACF and MA terms with small positives.
func (r *Result) initCoeffs(z []float64) {
	m := r.Seasonal.M
	maxLag := max(r.Order.P, r.Seasonal.P*m)
	acf := stats.ACF(z, maxLag)
	if acf != nil {
		for i := range r.AR {
			if i+1 < len(acf) {
				r.AR[i] = acf[i+1] * 0.5
			}
		}
		for i := range r.SAR {
			if idx := (i + 1) * m; idx < len(acf) {
				r.SAR[i] = acf[idx] * 0.5
			}
		}
	}
	for i := range r.MA {
		r.MA[i] = 0.1
	}
	for i := range r.SMA {
		r.SMA[i] = 0.1
	}
}

// css fills resid with one-step residuals from start onward and returns
// their sum of squares. Residuals before start are zero.
func (r *Result) css(z []float64, start int, resid []float64) float64 {
	m := r.Seasonal.M
	sse := 0.0
	for t := range z {
		if t < start {
			resid[t] = 0
			continue
		}
		pred := 0.0
		for i, c := range r.AR {
			pred += c * z[t-i-1]
		}
		for i, c := range r.SAR {
			pred += c * z[t-(i+1)*m]
		}
		for i, c := range r.MA {
			pred += c * resid[t-i-1]
		}
		for i, c := range r.SMA {
			pred += c * resid[t-(i+1)*m]
		}
		resid[t] = z[t] - pred
		sse += resid[t] * resid[t]
	}
	return sse
}

// optimizeCSS minimises the conditional sum of squares with momentum
// gradient descent, keeping the best coefficients seen.
func (r *Result) optimizeCSS(ctx context.Context, z []float64, start int) error {
	n := float64(len(z) - start)
	m := r.Seasonal.M
	groups := [][]float64{r.AR, r.MA, r.SAR, r.SMA}

	velocity := make([][]float64, len(groups))
	best := make([][]float64, len(groups))
	grad := make([][]float64, len(groups))
	for g, coeffs := range groups {
		velocity[g] = make([]float64, len(coeffs))
		best[g] = append([]float64(nil), coeffs...)
		grad[g] = make([]float64, len(coeffs))
	}

	resid := make([]float64, len(z))
	bestSSE := math.Inf(1)
	lr := learningRate
	stale := 0

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		sse := r.css(z, start, resid)
		if math.IsNaN(sse) || math.IsInf(sse, 0) {
			break
		}

		improvement := bestSSE - sse
		if sse < bestSSE {
			bestSSE = sse
			for g, coeffs := range groups {
				copy(best[g], coeffs)
			}
			stale = 0
		} else {
			stale++
		}
		if stale > patience || (improvement >= 0 && improvement < tolerance) {
			break
		}

		for g := range grad {
			clear(grad[g])
		}
		for t := start; t < len(z); t++ {
			e := resid[t]
			for i := range r.AR {
				grad[0][i] -= 2 * e * z[t-i-1]
			}
			for i := range r.MA {
				grad[1][i] -= 2 * e * resid[t-i-1]
			}
			for i := range r.SAR {
				grad[2][i] -= 2 * e * z[t-(i+1)*m]
			}
			for i := range r.SMA {
				grad[3][i] -= 2 * e * resid[t-(i+1)*m]
			}
		}

		for g, coeffs := range groups {
			for i := range coeffs {
				velocity[g][i] = momentum*velocity[g][i] + lr*grad[g][i]/n
				coeffs[i] = clamp(coeffs[i]-velocity[g][i], -coeffBound, coeffBound)
			}
		}
		lr *= decay
	}

	for g, coeffs := range groups {
		copy(coeffs, best[g])
	}
	return nil
}

// alignResiduals maps differenced residuals back onto the original index.
// One-step fitted values are observed minus residual.
func (r *Result) alignResiduals() {
	y := r.series.Values
	offset := len(y) - len(r.diffResid)

	r.residuals = make([]float64, len(y))
	r.fitted = make([]float64, len(y))
	copy(r.fitted, y)
	for t, e := range r.diffResid {
		r.residuals[offset+t] = e * r.diffScale
		r.fitted[offset+t] = y[offset+t] - r.residuals[offset+t]
	}
}

// Residuals returns one-step residuals aligned with the input series. The
// first Burn entries are zero.
func (r *Result) Residuals() []float64 {
	return append([]float64(nil), r.residuals...)
}

// FittedValues returns one-step fitted values aligned with the input series.
// The first Burn entries equal the observations.
func (r *Result) FittedValues() []float64 {
	return append([]float64(nil), r.fitted...)
}

// ModelResiduals returns the residuals that entered the likelihood.
func (r *Result) ModelResiduals() []float64 {
	return append([]float64(nil), r.residuals[r.Burn:]...)
}

// Spec returns the model label.
func (r *Result) Spec() string {
	return Spec(r.Order, r.Seasonal)
}

// Summary is a printable digest of a fitted model.
type Summary struct {
	Spec     string
	AR       []float64
	MA       []float64
	SAR      []float64
	SMA      []float64
	Mean     float64
	Sigma2   float64
	AIC      float64
	AICc     float64
	BIC      float64
	LogLik   float64
	NObs     int
	LjungBox *stats.LjungBoxResult
}

// Summary returns the coefficients, criteria and a Ljung-Box test of the
// residuals at lag max(min(2m, n/5), 10).
func (r *Result) Summary() *Summary {
	resid := r.ModelResiduals()
	lags := max(min(2*r.Seasonal.M, len(resid)/5), 10)
	fitdf := r.Order.P + r.Order.Q + r.Seasonal.P + r.Seasonal.Q

	return &Summary{
		Spec:     r.Spec(),
		AR:       r.AR,
		MA:       r.MA,
		SAR:      r.SAR,
		SMA:      r.SMA,
		Mean:     r.Mean,
		Sigma2:   r.Sigma2,
		AIC:      r.AIC,
		AICc:     r.AICc,
		BIC:      r.BIC,
		LogLik:   r.LogLik,
		NObs:     r.NObs,
		LjungBox: stats.LjungBox(resid, lags, fitdf),
	}
}

func mean(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func stddev(v []float64, mu float64) float64 {
	s := 0.0
	for _, x := range v {
		d := x - mu
		s += d * d
	}
	return math.Sqrt(s / float64(len(v)))
}

func clamp(v, lower, upper float64) float64 {
	return math.Max(lower, math.Min(upper, v))
}
