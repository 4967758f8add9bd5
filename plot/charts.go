package plot

import (
	"fmt"
	"time"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sartorproj/ridecast/stats"
	"github.com/sartorproj/ridecast/timeseries"
)

// SeriesChart draws the raw series.
func SeriesChart(s *timeseries.Series, title string) (*Chart, error) {
	if s == nil || s.Len() == 0 {
		return nil, ErrNoData
	}
	p := timePlot(title)
	l, err := newLine(timeXYs(s.Timestamps, s.Values), seriesColor, false)
	if err != nil {
		return nil, err
	}
	p.Add(l)
	return newChart(Height, p), nil
}

// FitChart overlays dashed fitted values on the series.
func FitChart(s *timeseries.Series, fitted []float64, title string) (*Chart, error) {
	if s == nil || s.Len() == 0 {
		return nil, ErrNoData
	}
	if len(fitted) != s.Len() {
		return nil, fmt.Errorf("fitted has %d values for %d observations", len(fitted), s.Len())
	}
	p := timePlot(title)
	observed, err := newLine(timeXYs(s.Timestamps, s.Values), seriesColor, false)
	if err != nil {
		return nil, err
	}
	fit, err := newLine(timeXYs(s.Timestamps, fitted), fittedColor, true)
	if err != nil {
		return nil, fmt.Errorf("fitted: %w", err)
	}
	p.Add(observed, fit)
	p.Legend.Add("observed", observed)
	p.Legend.Add("fitted", fit)
	return newChart(Height, p), nil
}

// Component is one panel of a ComponentsChart.
type Component struct {
	Name   string
	Values []float64
}

// ComponentsChart stacks one panel per component over a shared time axis.
func ComponentsChart(periods []time.Time, components ...Component) (*Chart, error) {
	if len(periods) == 0 || len(components) == 0 {
		return nil, ErrNoData
	}
	panels := make([]*gplot.Plot, len(components))
	for i, comp := range components {
		if len(comp.Values) != len(periods) {
			return nil, fmt.Errorf("component %s has %d values for %d periods", comp.Name, len(comp.Values), len(periods))
		}
		p := timePlot(comp.Name)
		l, err := newLine(timeXYs(periods, comp.Values), seriesColor, false)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", comp.Name, err)
		}
		p.Add(l)
		panels[i] = p
	}
	return newChart(Height*len(components)*2/3, panels...), nil
}

// ResidualChart draws residuals over time above their ACF and PACF bars with
// the approximate 95% bounds. Nil correlograms are left out.
func ResidualChart(periods []time.Time, residuals []float64, acf, pacf *stats.Correlogram, title string) (*Chart, error) {
	if len(residuals) == 0 {
		return nil, ErrNoData
	}
	if len(periods) != len(residuals) {
		return nil, fmt.Errorf("%d periods for %d residuals", len(periods), len(residuals))
	}

	p := timePlot(title)
	l, err := newLine(timeXYs(periods, residuals), seriesColor, false)
	if err != nil {
		return nil, err
	}
	zero, err := hline(float64(periods[0].Unix()), float64(periods[len(periods)-1].Unix()), 0, zeroColor, true)
	if err != nil {
		return nil, err
	}
	p.Add(l, zero)
	panels := []*gplot.Plot{p}

	for _, c := range []struct {
		name string
		corr *stats.Correlogram
	}{{"ACF", acf}, {"PACF", pacf}} {
		if c.corr == nil || len(c.corr.Values) < 2 {
			continue
		}
		cp, err := correlogramPlot(c.name, c.corr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
		panels = append(panels, cp)
	}
	return newChart(Height*len(panels)/2+Height/2, panels...), nil
}

// correlogramPlot draws lags 1.. as bars between dashed confidence bounds.
func correlogramPlot(name string, c *stats.Correlogram) (*gplot.Plot, error) {
	p := newPlot(name)
	p.X.Label.Text = "lag"
	p.Y.Min, p.Y.Max = -1, 1

	bars, err := plotter.NewBarChart(plotter.Values(c.Values[1:]), vg.Points(5))
	if err != nil {
		return nil, err
	}
	bars.XMin = 1
	bars.Color = barColor
	bars.LineStyle.Width = 0
	p.Add(bars)

	lags := float64(len(c.Values) - 1)
	for _, b := range []float64{c.ConfBounds, -c.ConfBounds} {
		l, err := hline(0.5, lags+0.5, b, boundColor, true)
		if err != nil {
			return nil, err
		}
		p.Add(l)
	}
	zero, err := hline(0.5, lags+0.5, 0, zeroColor, false)
	if err != nil {
		return nil, err
	}
	p.Add(zero)
	return p, nil
}

// ForecastChart draws the history followed by the point forecast and its
// shaded interval.
func ForecastChart(s *timeseries.Series, periods []time.Time, point, lower, upper []float64, title string) (*Chart, error) {
	if s == nil || s.Len() == 0 || len(point) == 0 {
		return nil, ErrNoData
	}
	if len(lower) != len(point) || len(upper) != len(point) || len(periods) != len(point) {
		return nil, fmt.Errorf("forecast bounds and periods must match %d points", len(point))
	}

	p := timePlot(title)

	ring := append(timeXYs(periods, lower), reversed(timeXYs(periods, upper))...)
	band, err := plotter.NewPolygon(ring)
	if err != nil {
		return nil, fmt.Errorf("interval: %w", err)
	}
	band.Color = bandColor
	band.LineStyle.Width = 0

	observed, err := newLine(timeXYs(s.Timestamps, s.Values), seriesColor, false)
	if err != nil {
		return nil, err
	}

	// Join the last observation to the first forecast.
	n := s.Len()
	joined := append(timeXYs(s.Timestamps[n-1:], s.Values[n-1:]), timeXYs(periods, point)...)
	fc, err := newLine(joined, forecastColor, false)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}

	p.Add(band, observed, fc)
	p.Legend.Add("observed", observed)
	p.Legend.Add("forecast", fc)
	p.Legend.Add("interval", band)
	return newChart(Height, p), nil
}

func reversed(pts plotter.XYs) plotter.XYs {
	out := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		out[len(pts)-1-i] = pt
	}
	return out
}
