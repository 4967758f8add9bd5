package sarima

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sartorproj/ridecast/timeseries"
)

// monthly builds trend + yearly seasonality + a deterministic wobble.
func monthly(n int, trend, amp float64) *timeseries.Series {
	values := make([]float64, n)
	for i := range values {
		seasonal := amp * math.Sin(2*math.Pi*float64(i)/12)
		noise := float64((i*7)%11-5) / 2
		values[i] = 1000 + trend*float64(i) + seasonal + noise
	}
	return timeseries.New(values)
}

func TestOrderStrings(t *testing.T) {
	got := Spec(Order{P: 2, Q: 1}, SeasonalOrder{P: 1, D: 1, M: 12})
	if got != "SARIMA(2,0,1)(1,1,0)[12]" {
		t.Errorf("Unexpected spec %q", got)
	}
}

func TestFitMonthlyData(t *testing.T) {
	series := monthly(84, 3, 200)

	res, err := Fit(context.Background(), series, Order{P: 1}, SeasonalOrder{P: 1, D: 1, M: 12})
	if err != nil {
		t.Fatalf("Failed to fit SARIMA model: %v", err)
	}

	if len(res.AR) != 1 || len(res.SAR) != 1 || len(res.MA) != 0 {
		t.Errorf("Unexpected coefficient lengths: AR=%d SAR=%d MA=%d", len(res.AR), len(res.SAR), len(res.MA))
	}
	for _, c := range append(res.AR, res.SAR...) {
		if math.Abs(c) > coeffBound {
			t.Errorf("Coefficient %f outside bounds", c)
		}
	}

	// 84 - 12 differenced observations, 12 consumed by the seasonal AR lag
	if res.NObs != 60 {
		t.Errorf("Expected NObs=60, got %d", res.NObs)
	}
	if res.Burn != 24 {
		t.Errorf("Expected Burn=24, got %d", res.Burn)
	}
	if math.IsNaN(res.AICc) || math.IsInf(res.AICc, 0) {
		t.Errorf("AICc should be finite, got %f", res.AICc)
	}
	if res.AICc < res.AIC {
		t.Errorf("AICc (%f) should be >= AIC (%f)", res.AICc, res.AIC)
	}

	t.Logf("%s - AIC: %f, AICc: %f, BIC: %f", res.Spec(), res.AIC, res.AICc, res.BIC)
	t.Logf("AR: %v SAR: %v sigma2: %f", res.AR, res.SAR, res.Sigma2)
}

func TestFittedPlusResidualIsObserved(t *testing.T) {
	series := monthly(84, 2, 150)

	res, err := Fit(context.Background(), series, Order{P: 2, Q: 1}, SeasonalOrder{P: 1, D: 1, M: 12})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	fitted := res.FittedValues()
	resid := res.Residuals()
	if len(fitted) != series.Len() || len(resid) != series.Len() {
		t.Fatalf("Expected aligned outputs of length %d", series.Len())
	}
	for i, y := range series.Values {
		if math.Abs(fitted[i]+resid[i]-y) > 1e-6 {
			t.Fatalf("Index %d: fitted %f + resid %f != observed %f", i, fitted[i], resid[i], y)
		}
	}
	for i := 0; i < res.Burn; i++ {
		if resid[i] != 0 {
			t.Errorf("Expected zero residual in burn-in at %d, got %f", i, resid[i])
		}
	}
	if got := len(res.ModelResiduals()); got != res.NObs {
		t.Errorf("Expected %d model residuals, got %d", res.NObs, got)
	}
}

func TestFitDoesNotMutateSeries(t *testing.T) {
	series := monthly(60, 1, 50)
	before := append([]float64(nil), series.Values...)

	if _, err := Fit(context.Background(), series, Order{P: 1, D: 1, Q: 1}, SeasonalOrder{D: 1, M: 12}); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	for i := range before {
		if series.Values[i] != before[i] {
			t.Fatalf("Series modified at %d", i)
		}
	}
}

func TestFitErrors(t *testing.T) {
	ctx := context.Background()
	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 5
	}

	tests := []struct {
		name     string
		series   *timeseries.Series
		order    Order
		seasonal SeasonalOrder
		want     error
	}{
		{"negative order", monthly(84, 1, 10), Order{P: -1}, SeasonalOrder{M: 12}, ErrInvalidOrder},
		{"seasonal without period", monthly(84, 1, 10), Order{}, SeasonalOrder{P: 1, D: 1}, ErrInvalidOrder},
		{"too short", monthly(20, 1, 10), Order{P: 1}, SeasonalOrder{P: 1, D: 1, M: 12}, ErrInsufficientData},
		{"constant", timeseries.New(flat), Order{P: 1}, SeasonalOrder{M: 12}, ErrDegenerate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(ctx, tt.series, tt.order, tt.seasonal)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fit(ctx, monthly(84, 1, 10), Order{P: 1}, SeasonalOrder{P: 1, D: 1, M: 12})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestForecast(t *testing.T) {
	series := monthly(96, 0, 10)

	res, err := Fit(context.Background(), series, Order{}, SeasonalOrder{P: 1, M: 12})
	if err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	fc, err := res.Forecast(12, 0.95)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}

	if len(fc.Point) != 12 || len(fc.Lower) != 12 || len(fc.Upper) != 12 || len(fc.Periods) != 12 {
		t.Fatalf("Expected 12 forecasts, got %d", len(fc.Point))
	}

	if !fc.Periods[0].Equal(series.End().AddDate(0, 1, 0)) {
		t.Errorf("First forecast period %v should follow %v", fc.Periods[0], series.End())
	}

	for i, f := range fc.Point {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Errorf("Forecast %d is NaN or Inf", i)
		}
		if !(fc.Lower[i] < f && f < fc.Upper[i]) {
			t.Errorf("Forecast %d: %f not inside (%f, %f)", i, f, fc.Lower[i], fc.Upper[i])
		}
		if f < 950 || f > 1050 {
			t.Logf("Forecast %d may be unusual: %f", i, f)
		}
	}
	t.Logf("Forecasts for next 12 periods: %v", fc.Point)
}

func TestForecastIntervalsWidenWithDifferencing(t *testing.T) {
	series := monthly(84, 3, 200)

	res, err := Fit(context.Background(), series, Order{P: 1}, SeasonalOrder{P: 1, D: 1, M: 12})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	fc, err := res.Forecast(36, 0.95)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	first := fc.Upper[0] - fc.Lower[0]
	last := fc.Upper[35] - fc.Lower[35]
	if last <= first {
		t.Errorf("Expected wider interval at h=36 (%f) than h=1 (%f)", last, first)
	}
	for h := 1; h < 36; h++ {
		if fc.Upper[h]-fc.Lower[h] < fc.Upper[h-1]-fc.Lower[h-1]-1e-9 {
			t.Errorf("Interval shrank at h=%d", h+1)
		}
	}

	// Seasonal differencing carries the yearly pattern forward.
	peak := fc.Point[2] - fc.Point[8]
	if peak <= 0 {
		t.Errorf("Expected the seasonal peak to persist in the forecast, got %f", peak)
	}
}

func TestIntegrateRoundTrip(t *testing.T) {
	// For a perfectly seasonal-differenced series with zero innovations, the
	// integrated forecast of a zero diff equals the value one season ago.
	values := make([]float64, 48)
	for i := range values {
		values[i] = float64(i%12) * 10
	}
	r := &Result{
		Order:    Order{},
		Seasonal: SeasonalOrder{D: 1, M: 12},
		levels:   [][]float64{values, timeseries.New(values).SeasonalDiff(12).Values},
	}

	out := r.integrate(make([]float64, 12))
	for h, v := range out {
		if v != values[36+h] {
			t.Errorf("h=%d: expected %f, got %f", h, values[36+h], v)
		}
	}

	r = &Result{
		Order:  Order{D: 2},
		levels: [][]float64{{1, 4, 9, 16}, {3, 5, 7}, {2, 2}},
	}
	// Second differences constant at 2 continue the squares.
	if got := r.integrate([]float64{2, 2}); got[0] != 25 || got[1] != 36 {
		t.Errorf("Expected [25 36], got %v", got)
	}
}

func TestPsiWeights(t *testing.T) {
	r := &Result{
		Order:    Order{P: 1},
		Seasonal: SeasonalOrder{M: 12},
		AR:       []float64{0.5},
	}

	// AR(1): psi_j = 0.5^j
	psi := r.psiWeights(5)
	for j, v := range psi {
		if math.Abs(v-math.Pow(0.5, float64(j))) > 1e-12 {
			t.Errorf("psi[%d] = %f, expected %f", j, v, math.Pow(0.5, float64(j)))
		}
	}

	// Random walk: all ones
	r = &Result{Order: Order{D: 1}, Seasonal: SeasonalOrder{M: 12}}
	for j, v := range r.psiWeights(4) {
		if v != 1 {
			t.Errorf("random walk psi[%d] = %f, expected 1", j, v)
		}
	}
}

func TestSummary(t *testing.T) {
	series := monthly(84, 2, 100)

	res, err := Fit(context.Background(), series, Order{P: 1, Q: 1}, SeasonalOrder{P: 1, D: 1, M: 12})
	if err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	summary := res.Summary()
	if summary.NObs != res.NObs {
		t.Errorf("Expected NObs=%d, got %d", res.NObs, summary.NObs)
	}
	if summary.LjungBox == nil {
		t.Fatal("Expected Ljung-Box result")
	}
	t.Logf("%s Ljung-Box Q=%f p=%f", summary.Spec, summary.LjungBox.Statistic, summary.LjungBox.PValue)
}

func TestForecastNotFitted(t *testing.T) {
	var r *Result
	if _, err := r.Forecast(3, 0.95); !errors.Is(err, ErrNotFitted) {
		t.Errorf("Expected ErrNotFitted, got %v", err)
	}
}
