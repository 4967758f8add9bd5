// Package metrics records run metrics for the node exporter textfile
// collector.
package metrics

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sartorproj/ridecast/orderselect"
)

// Recorder owns a private registry so repeated runs in one process, and
// tests, never collide on the default registry.
type Recorder struct {
	registry *prometheus.Registry

	GridCells    *prometheus.CounterVec
	FitDuration  *prometheus.HistogramVec
	SelectedAICc prometheus.Gauge
	LastRun      prometheus.Gauge
	Observations prometheus.Gauge
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		GridCells: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ridecast_grid_cells_total",
				Help: "Order grid cells evaluated, by outcome",
			},
			[]string{"status"},
		),
		FitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ridecast_fit_duration_seconds",
				Help:    "Model fit duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"model"},
		),
		SelectedAICc: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ridecast_selected_aicc",
			Help: "AICc of the selected seasonal ARIMA order",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ridecast_last_run_timestamp_seconds",
			Help: "Unix time of the last completed analysis",
		}),
		Observations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ridecast_series_observations",
			Help: "Observations in the analysed series",
		}),
	}
	r.registry.MustRegister(r.GridCells, r.FitDuration, r.SelectedAICc, r.LastRun, r.Observations)
	return r
}

// ObserveCell implements orderselect.Observer.
func (r *Recorder) ObserveCell(s orderselect.Score, elapsed time.Duration) {
	status := "ok"
	if !s.Available {
		status = "unavailable"
	}
	r.GridCells.WithLabelValues(status).Inc()
	r.FitDuration.WithLabelValues("sarima").Observe(elapsed.Seconds())
}

// ObserveFit records one fit of the named model.
func (r *Recorder) ObserveFit(model string, elapsed time.Duration) {
	r.FitDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// RunCompleted records the outcome of a finished analysis. A NaN AICc (no
// viable order) leaves the selected AICc gauge untouched.
func (r *Recorder) RunCompleted(at time.Time, observations int, selectedAICc float64) {
	r.Observations.Set(float64(observations))
	if !math.IsNaN(selectedAICc) {
		r.SelectedAICc.Set(selectedAICc)
	}
	r.LastRun.Set(float64(at.Unix()))
}

// WriteTextfile atomically writes the registry in text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
