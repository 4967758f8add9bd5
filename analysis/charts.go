package analysis

import (
	"fmt"
	"path/filepath"

	"github.com/sartorproj/ridecast/plot"
)

// renderCharts writes the run's charts to dir and returns their paths.
func renderCharts(dir string, rep *Report) ([]string, error) {
	s := rep.Series
	hw := rep.HoltWinters
	model := rep.SARIMA
	fc := rep.Forecast

	charts := []struct {
		name   string
		render func() (*plot.Chart, error)
	}{
		{"series.png", func() (*plot.Chart, error) {
			return plot.SeriesChart(s, "Monthly bike rentals")
		}},
		{"holt_winters_fit.png", func() (*plot.Chart, error) {
			return plot.FitChart(s, hw.FittedValues, "Holt-Winters' method fit")
		}},
		{"holt_winters_components.png", func() (*plot.Chart, error) {
			return plot.ComponentsChart(s.Timestamps,
				plot.Component{Name: "Level", Values: hw.Level},
				plot.Component{Name: "Trend/Slope", Values: hw.Slope},
				plot.Component{Name: "Seasonality", Values: hw.Season})
		}},
		{"sarima_fit.png", func() (*plot.Chart, error) {
			return plot.FitChart(s, model.FittedValues(), model.Spec()+" fit")
		}},
		{"sarima_residuals.png", func() (*plot.Chart, error) {
			return plot.ResidualChart(s.Timestamps, model.Residuals(), rep.ResidualACF, rep.ResidualPACF, model.Spec()+" residuals")
		}},
		{"forecast.png", func() (*plot.Chart, error) {
			title := fmt.Sprintf("%s forecast, %.0f%% interval", model.Spec(), fc.Confidence*100)
			return plot.ForecastChart(s, fc.Periods, fc.Point, fc.Lower, fc.Upper, title)
		}},
	}

	paths := make([]string, 0, len(charts))
	for _, c := range charts {
		chart, err := c.render()
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", c.name, err)
		}
		path := filepath.Join(dir, c.name)
		if err := plot.Save(path, chart); err != nil {
			return nil, fmt.Errorf("save %s: %w", c.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
