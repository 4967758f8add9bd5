package orderselect

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sartorproj/ridecast/sarima"
	"github.com/sartorproj/ridecast/timeseries"
)

type cell struct{ p, q int }

// fakeFitter returns scripted scores. Cells missing from scores fail.
type fakeFitter struct {
	scores map[cell]float64
	calls  atomic.Int64

	mu   sync.Mutex
	seen []sarima.SeasonalOrder
}

func (f *fakeFitter) FitScore(_ context.Context, _ *timeseries.Series, order sarima.Order, seasonal sarima.SeasonalOrder) (float64, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, seasonal)
	f.mu.Unlock()

	if s, ok := f.scores[cell{order.P, order.Q}]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("fit %s: did not converge", order)
}

func series84() *timeseries.Series {
	values := make([]float64, 84)
	for i := range values {
		values[i] = 1000 + 10*float64(i) + 300*math.Sin(2*math.Pi*float64(i)/12) + float64((i*7)%11-5)*8
	}
	return timeseries.New(values)
}

func smallGrid() Grid {
	return Grid{
		PValues:  []int{0, 1},
		QValues:  []int{0, 1},
		Seasonal: sarima.SeasonalOrder{P: 1, D: 1, Q: 0, M: 12},
	}
}

func TestDefaultGrid(t *testing.T) {
	g := DefaultGrid()
	if g.Size() != 6 {
		t.Errorf("Expected 6 cells, got %d", g.Size())
	}
	want := sarima.SeasonalOrder{P: 1, D: 1, Q: 0, M: 12}
	if g.Seasonal != want {
		t.Errorf("Expected seasonal %v, got %v", want, g.Seasonal)
	}
	if g.D != 0 {
		t.Errorf("Expected d=0, got %d", g.D)
	}
}

func TestSelectBestOrderMinimum(t *testing.T) {
	f := &fakeFitter{scores: map[cell]float64{
		{0, 0}: 812.4, {0, 1}: 806.1,
		{1, 0}: 801.7, {1, 1}: 803.0,
		{2, 0}: 802.2, {2, 1}: 804.9,
	}}

	sel, err := SelectBestOrder(context.Background(), series84(), DefaultGrid(), f)
	if err != nil {
		t.Fatalf("SelectBestOrder failed: %v", err)
	}

	if sel.BestP != 1 || sel.BestQ != 0 {
		t.Errorf("Expected (1,0), got (%d,%d)", sel.BestP, sel.BestQ)
	}
	if sel.Best.AICc != 801.7 {
		t.Errorf("Expected AICc 801.7, got %f", sel.Best.AICc)
	}
	for _, s := range sel.Table.Scores {
		if s.Available && s.AICc < sel.Best.AICc {
			t.Errorf("Cell (%d,%d) beats the selection", s.P, s.Q)
		}
	}
	if got := f.calls.Load(); got != 6 {
		t.Errorf("Expected 6 fits, got %d", got)
	}
	if sel.Order != (sarima.Order{P: 1, D: 0, Q: 0}) {
		t.Errorf("Unexpected order %v", sel.Order)
	}
	for _, s := range f.seen {
		if s != DefaultGrid().Seasonal {
			t.Errorf("Fitter received seasonal order %v", s)
		}
	}
}

func TestSelectBestOrderRowMajorTable(t *testing.T) {
	f := &fakeFitter{scores: map[cell]float64{
		{0, 0}: 1, {0, 1}: 2, {1, 0}: 3, {1, 1}: 4, {2, 0}: 5, {2, 1}: 6,
	}}

	sel, err := SelectBestOrder(context.Background(), series84(), DefaultGrid(), f)
	if err != nil {
		t.Fatal(err)
	}

	want := []cell{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}, {2, 1}}
	for i, s := range sel.Table.Scores {
		if (cell{s.P, s.Q}) != want[i] {
			t.Errorf("Position %d holds (%d,%d), want %v", i, s.P, s.Q, want[i])
		}
		if s.AICc != float64(i+1) {
			t.Errorf("Position %d has AICc %f", i, s.AICc)
		}
	}
	if s := sel.Table.At(2, 1); s.P != 2 || s.Q != 1 {
		t.Errorf("At(2,1) returned (%d,%d)", s.P, s.Q)
	}
}

func TestSelectBestOrderTieBreak(t *testing.T) {
	f := &fakeFitter{scores: map[cell]float64{
		{0, 0}: 10, {0, 1}: 10,
		{1, 0}: 5, {1, 1}: 5,
	}}

	sel, err := SelectBestOrder(context.Background(), series84(), smallGrid(), f)
	if err != nil {
		t.Fatal(err)
	}
	if sel.BestP != 1 || sel.BestQ != 0 {
		t.Errorf("Expected first minimum (1,0), got (%d,%d)", sel.BestP, sel.BestQ)
	}
}

func TestSelectBestOrderFailurePropagation(t *testing.T) {
	f := &fakeFitter{scores: map[cell]float64{
		{0, 0}: 8, {0, 1}: 6,
	}}

	sel, err := SelectBestOrder(context.Background(), series84(), smallGrid(), f)
	if err != nil {
		t.Fatal(err)
	}
	if sel.BestP != 0 || sel.BestQ != 1 {
		t.Errorf("Expected (0,1), got (%d,%d)", sel.BestP, sel.BestQ)
	}

	for _, c := range []cell{{1, 0}, {1, 1}} {
		s, ok := sel.Table.Lookup(c.p, c.q)
		if !ok {
			t.Fatalf("Cell %v missing", c)
		}
		if s.Available || !math.IsNaN(s.AICc) || s.Err == nil {
			t.Errorf("Cell %v should be unavailable with a reason: %+v", c, s)
		}
	}
	if sel.Table.Available() != 2 {
		t.Errorf("Expected 2 available cells, got %d", sel.Table.Available())
	}
	if got := f.calls.Load(); got != 4 {
		t.Errorf("Expected every cell to be attempted, got %d calls", got)
	}
}

func TestSelectBestOrderNonFiniteIsUnavailable(t *testing.T) {
	f := &fakeFitter{scores: map[cell]float64{
		{0, 0}: math.Inf(-1), {0, 1}: math.NaN(), {1, 0}: 20, {1, 1}: 30,
	}}

	sel, err := SelectBestOrder(context.Background(), series84(), smallGrid(), f)
	if err != nil {
		t.Fatal(err)
	}
	if sel.BestP != 1 || sel.BestQ != 0 {
		t.Errorf("Expected (1,0), got (%d,%d)", sel.BestP, sel.BestQ)
	}
	if sel.Table.Scores[0].Available || sel.Table.Scores[1].Available {
		t.Error("Non-finite scores should be unavailable")
	}
}

func TestSelectBestOrderAllFail(t *testing.T) {
	f := &fakeFitter{}

	sel, err := SelectBestOrder(context.Background(), series84(), DefaultGrid(), f)
	if !errors.Is(err, ErrNoViableModel) {
		t.Fatalf("Expected ErrNoViableModel, got %v", err)
	}
	if sel == nil || len(sel.Table.Scores) != 6 || sel.Table.Available() != 0 {
		t.Errorf("Expected the full unavailable table alongside the error")
	}
	if got := f.calls.Load(); got != 6 {
		t.Errorf("Expected 6 attempts, got %d", got)
	}
}

func TestSelectBestOrderInvalidInput(t *testing.T) {
	mismatched := series84()
	mismatched.Timestamps = mismatched.Timestamps[:80]

	nonFinite := series84()
	nonFinite.Values[3] = math.NaN()

	gapped := series84()
	gapped.Timestamps[10] = gapped.Timestamps[10].AddDate(0, 1, 0)

	withPeriods := func(n int) Grid {
		g := DefaultGrid()
		g.Periods = n
		return g
	}
	withGrid := func(mod func(*Grid)) Grid {
		g := DefaultGrid()
		mod(&g)
		return g
	}

	tests := []struct {
		name   string
		series *timeseries.Series
		grid   Grid
	}{
		{"nil series", nil, DefaultGrid()},
		{"empty series", timeseries.New(nil), DefaultGrid()},
		{"timestamp mismatch", mismatched, DefaultGrid()},
		{"length mismatch", series84(), withPeriods(96)},
		{"non-finite value", nonFinite, DefaultGrid()},
		{"gap in index", gapped, DefaultGrid()},
		{"empty p range", series84(), withGrid(func(g *Grid) { g.PValues = nil })},
		{"empty q range", series84(), withGrid(func(g *Grid) { g.QValues = []int{} })},
		{"negative p", series84(), withGrid(func(g *Grid) { g.PValues = []int{0, -1} })},
		{"negative q", series84(), withGrid(func(g *Grid) { g.QValues = []int{-2} })},
		{"zero period", series84(), withGrid(func(g *Grid) { g.Seasonal.M = 0 })},
		{"negative seasonal", series84(), withGrid(func(g *Grid) { g.Seasonal.D = -1 })},
		{"unit period with seasonal terms", series84(), withGrid(func(g *Grid) { g.Seasonal.M = 1 })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFitter{scores: map[cell]float64{{0, 0}: 1}}
			_, err := SelectBestOrder(context.Background(), tt.series, tt.grid, f)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
			if got := f.calls.Load(); got != 0 {
				t.Errorf("Expected zero fits, got %d", got)
			}
		})
	}

	if _, err := SelectBestOrder(context.Background(), series84(), DefaultGrid(), nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil fitter, got %v", err)
	}
}

func TestSelectBestOrderNonSeasonalUnitPeriod(t *testing.T) {
	g := DefaultGrid()
	g.Seasonal = sarima.SeasonalOrder{M: 1}

	f := &fakeFitter{scores: map[cell]float64{{0, 0}: 3, {1, 1}: 2}}
	sel, err := SelectBestOrder(context.Background(), series84(), g, f)
	if err != nil {
		t.Fatalf("Expected a purely non-seasonal grid to be accepted: %v", err)
	}
	if sel.BestP != 1 || sel.BestQ != 1 {
		t.Errorf("Expected (1,1), got (%d,%d)", sel.BestP, sel.BestQ)
	}
}

func TestSelectBestOrderSeriesValidationWrapped(t *testing.T) {
	g := DefaultGrid()
	g.Periods = 12
	_, err := SelectBestOrder(context.Background(), series84(), g, &fakeFitter{})
	if !errors.Is(err, timeseries.ErrInvalidSeries) {
		t.Errorf("Expected the series error to be wrapped, got %v", err)
	}
}

func TestSelectBestOrderDeterministicAcrossWorkers(t *testing.T) {
	scores := map[cell]float64{
		{0, 0}: 40, {0, 1}: 31,
		{1, 0}: 31, {2, 0}: 35,
	}

	var tables []ScoreTable
	var picks []cell
	for _, workers := range []int{1, 1, 2, 6} {
		f := &fakeFitter{scores: scores}
		sel, err := SelectBestOrder(context.Background(), series84(), DefaultGrid(), f, WithWorkers(workers))
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		tables = append(tables, sel.Table)
		picks = append(picks, cell{sel.BestP, sel.BestQ})
	}

	for i := 1; i < len(picks); i++ {
		if picks[i] != picks[0] {
			t.Errorf("Run %d picked %v, run 0 picked %v", i, picks[i], picks[0])
		}
		if tables[i].String() != tables[0].String() {
			t.Errorf("Run %d table differs:\n%s\nvs\n%s", i, tables[i], tables[0])
		}
	}
	if picks[0] != (cell{0, 1}) {
		t.Errorf("Expected tie resolved to (0,1), got %v", picks[0])
	}
}

// slowFitter blocks until its context is cancelled.
type slowFitter struct{ calls atomic.Int64 }

func (f *slowFitter) FitScore(ctx context.Context, _ *timeseries.Series, _ sarima.Order, _ sarima.SeasonalOrder) (float64, error) {
	f.calls.Add(1)
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestSelectBestOrderCancelled(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			f := &slowFitter{}
			_, err := SelectBestOrder(ctx, series84(), DefaultGrid(), f, WithWorkers(workers))
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("Expected deadline exceeded, got %v", err)
			}
			if f.calls.Load() > int64(workers) {
				t.Errorf("Expected at most %d fits after cancellation, got %d", workers, f.calls.Load())
			}
		})
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	cells []Score
}

func (r *recordingObserver) ObserveCell(s Score, _ time.Duration) {
	r.mu.Lock()
	r.cells = append(r.cells, s)
	r.mu.Unlock()
}

func TestSelectBestOrderObserver(t *testing.T) {
	obs := &recordingObserver{}
	f := &fakeFitter{scores: map[cell]float64{{0, 0}: 1}}

	if _, err := SelectBestOrder(context.Background(), series84(), DefaultGrid(), f, WithObserver(obs), WithWorkers(2)); err != nil {
		t.Fatal(err)
	}

	available := 0
	for _, s := range obs.cells {
		if s.Available {
			available++
		}
	}
	if len(obs.cells) != 6 || available != 1 {
		t.Errorf("Expected 6 observations with 1 available, got %d and %d", len(obs.cells), available)
	}
}

func TestScoreTableString(t *testing.T) {
	f := &fakeFitter{scores: map[cell]float64{{0, 0}: 812.25, {1, 1}: 799.5}}
	sel, err := SelectBestOrder(context.Background(), series84(), smallGrid(), f)
	if err != nil {
		t.Fatal(err)
	}

	out := sel.Table.String()
	for _, want := range []string{"q=0", "q=1", "p=0", "p=1", "812.25", "799.50", "n/a"} {
		if !strings.Contains(out, want) {
			t.Errorf("Table missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Split(strings.TrimRight(out, "\n"), "\n"); len(lines) != 3 {
		t.Errorf("Expected header plus 2 rows, got %d lines", len(lines))
	}
}

func TestSelectBestOrderWithSARIMAFitter(t *testing.T) {
	if testing.Short() {
		t.Skip("fits six SARIMA models")
	}

	sel, err := SelectBestOrder(context.Background(), series84(), DefaultGrid(), sarima.Fitter{}, WithWorkers(3))
	if err != nil {
		t.Fatalf("SelectBestOrder failed: %v", err)
	}
	t.Logf("selected %s\n%s", sarima.Spec(sel.Order, sel.Seasonal), sel.Table)

	if sel.Table.Available() == 0 {
		t.Fatal("Expected at least one SARIMA fit to succeed")
	}
	if math.IsNaN(sel.Best.AICc) || math.IsInf(sel.Best.AICc, 0) {
		t.Errorf("Best AICc not finite: %f", sel.Best.AICc)
	}
}
