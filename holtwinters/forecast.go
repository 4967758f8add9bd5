package holtwinters

import (
	"errors"
	"math"
	"time"

	"github.com/sartorproj/ridecast/stats"
)

// Forecast holds point forecasts and interval bounds.
type Forecast struct {
	Periods    []time.Time
	Point      []float64
	Lower      []float64
	Upper      []float64
	Confidence float64
}

// Forecast extends the final states steps periods ahead. Interval widths use
// the additive-error variance multipliers
// 1 + sum_{j<h} (alpha(1 + beta*phi_j) + gamma*[j mod m == 0])^2,
// which are exact for additive models and approximate otherwise.
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

	s := &smoother{cfg: r.Config, m: r.Config.period()}
	p := r.Params
	n := len(r.Level)
	l := r.Level[n-1]
	b := r.Slope[n-1]

	// Latest seasonal state for each position in the cycle.
	season := make([]float64, s.m)
	if p.InitialSeasonal != nil {
		copy(season, p.InitialSeasonal)
	}
	for t := 0; t < n; t++ {
		season[t%s.m] = r.Season[t]
	}

	z := stats.NormalQuantile((1 + confidence) / 2)
	sigma := math.Sqrt(r.Sigma2(s.numParams()))

	fc := &Forecast{
		Periods:    r.series.Future(steps),
		Point:      make([]float64, steps),
		Lower:      make([]float64, steps),
		Upper:      make([]float64, steps),
		Confidence: confidence,
	}

	varMult := 1.0
	for h := 1; h <= steps; h++ {
		base := s.trendStep(l, b, h, p.Phi)
		point := s.seasonApply(base, season[(n+h-1)%s.m])

		if h > 1 {
			j := h - 1
			c := p.Alpha
			if r.Config.Trend != None {
				c += p.Alpha * p.Beta * dampedSum(p.Phi, j)
			}
			if r.Config.Seasonal != None && j%s.m == 0 {
				c += p.Gamma
			}
			varMult += c * c
		}

		half := z * sigma * math.Sqrt(varMult)
		fc.Point[h-1] = point
		fc.Lower[h-1] = point - half
		fc.Upper[h-1] = point + half
	}

	return fc, nil
}
