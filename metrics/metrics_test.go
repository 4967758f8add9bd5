package metrics

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sartorproj/ridecast/orderselect"
)

func TestObserveCell(t *testing.T) {
	r := New()

	r.ObserveCell(orderselect.Score{P: 0, Q: 0, AICc: 812, Available: true}, 40*time.Millisecond)
	r.ObserveCell(orderselect.Score{P: 1, Q: 1, AICc: 799, Available: true}, 55*time.Millisecond)
	r.ObserveCell(orderselect.Score{P: 2, Q: 1, AICc: math.NaN(), Err: errors.New("diverged")}, 10*time.Millisecond)

	if got := testutil.ToFloat64(r.GridCells.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok cells = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.GridCells.WithLabelValues("unavailable")); got != 1 {
		t.Errorf("unavailable cells = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.FitDuration); got != 1 {
		t.Errorf("fit duration series = %d, want 1", got)
	}
}

func TestRunCompleted(t *testing.T) {
	r := New()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r.ObserveFit("holtwinters", 120*time.Millisecond)
	r.RunCompleted(at, 84, 801.7)

	if got := testutil.ToFloat64(r.SelectedAICc); got != 801.7 {
		t.Errorf("selected aicc = %v", got)
	}
	if got := testutil.ToFloat64(r.LastRun); got != float64(at.Unix()) {
		t.Errorf("last run = %v", got)
	}
	if got := testutil.ToFloat64(r.Observations); got != 84 {
		t.Errorf("observations = %v", got)
	}
}

func TestRunCompletedWithoutViableModel(t *testing.T) {
	r := New()
	r.RunCompleted(time.Now(), 84, 801.7)
	r.RunCompleted(time.Now(), 84, math.NaN())

	if got := testutil.ToFloat64(r.SelectedAICc); got != 801.7 {
		t.Errorf("selected aicc = %v, want previous value kept", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObserveCell(orderselect.Score{Available: true, AICc: 1}, time.Millisecond)
	r.ObserveFit("holtwinters", time.Millisecond)
	r.RunCompleted(time.Now(), 84, 1)

	path := filepath.Join(t.TempDir(), "ridecast.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`ridecast_grid_cells_total{status="ok"} 1`,
		`ridecast_fit_duration_seconds_count{model="holtwinters"} 1`,
		`ridecast_fit_duration_seconds_count{model="sarima"} 1`,
		"ridecast_selected_aicc 1",
		"ridecast_series_observations 84",
		"# TYPE ridecast_last_run_timestamp_seconds gauge",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.GridCells.WithLabelValues("ok").Inc()
	if got := testutil.ToFloat64(b.GridCells.WithLabelValues("ok")); got != 0 {
		t.Errorf("recorders share state: %v", got)
	}
}
