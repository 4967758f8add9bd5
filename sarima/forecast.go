package sarima

import (
	"errors"
	"math"
	"time"

	"github.com/sartorproj/ridecast/stats"
)

// Forecast holds point forecasts and prediction interval bounds on the
// original scale.
type Forecast struct {
	Periods    []time.Time
	Point      []float64
	Lower      []float64
	Upper      []float64
	Confidence float64
}

// Forecast predicts steps periods past the end of the fitted series, with
// intervals at the given confidence (0.95 when outside (0, 1)).
func (r *Result) Forecast(steps int, confidence float64) (*Forecast, error) {
	if r == nil || r.series == nil {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.New("steps must be at least 1")
	}
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}

	point := r.integrate(r.forecastDiff(steps))

	psi := r.psiWeights(steps)
	z := stats.NormalQuantile((1 + confidence) / 2)
	lower := make([]float64, steps)
	upper := make([]float64, steps)
	acc := 0.0
	for h := 0; h < steps; h++ {
		acc += psi[h] * psi[h]
		half := z * math.Sqrt(r.Sigma2*acc)
		lower[h] = point[h] - half
		upper[h] = point[h] + half
	}

	return &Forecast{
		Periods:    r.series.Future(steps),
		Point:      point,
		Lower:      lower,
		Upper:      upper,
		Confidence: confidence,
	}, nil
}

// forecastDiff runs the ARMA recursion forward on the differenced scale,
// with future innovations set to zero.
func (r *Result) forecastDiff(steps int) []float64 {
	m := r.Seasonal.M
	n := len(r.diffResid)
	diff := r.levels[len(r.levels)-1]

	z := make([]float64, n+steps)
	e := make([]float64, n+steps)
	for t := 0; t < n; t++ {
		z[t] = (diff[t] - r.Mean) / r.diffScale
	}
	copy(e, r.diffResid)

	for t := n; t < n+steps; t++ {
		pred := 0.0
		for i, c := range r.AR {
			if t-i-1 >= 0 {
				pred += c * z[t-i-1]
			}
		}
		for i, c := range r.SAR {
			if lag := t - (i+1)*m; lag >= 0 {
				pred += c * z[lag]
			}
		}
		for i, c := range r.MA {
			if t-i-1 >= 0 {
				pred += c * e[t-i-1]
			}
		}
		for i, c := range r.SMA {
			if lag := t - (i+1)*m; lag >= 0 {
				pred += c * e[lag]
			}
		}
		z[t] = pred
	}

	out := make([]float64, steps)
	for h := range out {
		out[h] = r.Mean + r.diffScale*z[n+h]
	}
	return out
}

// integrate undoes the seasonal then the non-seasonal differences, walking
// back down the stored levels.
func (r *Result) integrate(f []float64) []float64 {
	cur := f
	nLevels := len(r.levels)
	for lvl := nLevels - 1; lvl >= 1; lvl-- {
		lag := 1
		if lvl > r.Order.D {
			lag = r.Seasonal.M
		}
		hist := r.levels[lvl-1]
		ext := make([]float64, len(hist)+len(cur))
		copy(ext, hist)
		for h, v := range cur {
			t := len(hist) + h
			ext[t] = v + ext[t-lag]
		}
		cur = ext[len(hist):]
	}
	return append([]float64(nil), cur...)
}

// psiWeights returns the first n coefficients of the MA(∞) form of the full
// integrated model, used for h-step forecast variances.
func (r *Result) psiWeights(n int) []float64 {
	m := r.Seasonal.M

	// phi(B) = 1 - sum AR_i B^i - sum SAR_j B^(jm), then times (1-B)^d (1-B^m)^D.
	phi := []float64{1}
	phi = polyAdd(phi, lagPoly(r.AR, 1, -1))
	phi = polyAdd(phi, lagPoly(r.SAR, m, -1))
	for i := 0; i < r.Order.D; i++ {
		phi = polyMul(phi, []float64{1, -1})
	}
	if r.Seasonal.D > 0 {
		seasonalDiff := make([]float64, m+1)
		seasonalDiff[0], seasonalDiff[m] = 1, -1
		for i := 0; i < r.Seasonal.D; i++ {
			phi = polyMul(phi, seasonalDiff)
		}
	}

	theta := []float64{1}
	theta = polyAdd(theta, lagPoly(r.MA, 1, 1))
	theta = polyAdd(theta, lagPoly(r.SMA, m, 1))

	psi := make([]float64, n)
	for j := 0; j < n; j++ {
		v := 0.0
		if j < len(theta) {
			v = theta[j]
		}
		for i := 1; i <= j && i < len(phi); i++ {
			v -= phi[i] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}

// lagPoly places sign*coeffs[i] at power (i+1)*step.
func lagPoly(coeffs []float64, step int, sign float64) []float64 {
	if len(coeffs) == 0 {
		return nil
	}
	p := make([]float64, len(coeffs)*step+1)
	for i, c := range coeffs {
		p[(i+1)*step] = sign * c
	}
	return p
}

func polyAdd(a, b []float64) []float64 {
	out := make([]float64, max(len(a), len(b)))
	copy(out, a)
	for i, v := range b {
		out[i] += v
	}
	return out
}

func polyMul(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}
