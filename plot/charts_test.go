package plot

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sartorproj/ridecast/stats"
	"github.com/sartorproj/ridecast/timeseries"
)

func testSeries(n int) *timeseries.Series {
	values := make([]float64, n)
	for i := range values {
		values[i] = 5000 + 40*float64(i) + 2000*math.Sin(2*math.Pi*float64(i)/12)
	}
	start, _ := timeseries.ParseMonth("2013-01")
	return timeseries.NewMonthly(start, values)
}

// countNear counts pixels within tol of col on every channel.
func countNear(img image.Image, col color.RGBA, tol int) int {
	near := func(a uint32, b uint8) bool {
		d := int(a>>8) - int(b)
		return d >= -tol && d <= tol
	}
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if near(r, col.R) && near(g, col.G) && near(bl, col.B) {
				n++
			}
		}
	}
	return n
}

func checkSize(t *testing.T, img image.Image, w, h int) {
	t.Helper()
	if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		t.Errorf("Expected %dx%d image, got %v", w, h, img.Bounds())
	}
}

func TestSeriesChart(t *testing.T) {
	c, err := SeriesChart(testSeries(84), "Monthly rides")
	if err != nil {
		t.Fatalf("SeriesChart: %v", err)
	}
	if len(c.Panels) != 1 || c.Panels[0].Title.Text != "Monthly rides" {
		t.Errorf("Unexpected panels %+v", c.Panels)
	}

	img := c.Image()
	checkSize(t, img, Width, Height)
	if countNear(img, seriesColor, 30) < Width/8 {
		t.Error("Series line is missing")
	}

	if _, err := SeriesChart(timeseries.New(nil), ""); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
}

func TestFitChart(t *testing.T) {
	s := testSeries(84)
	fitted := make([]float64, s.Len())
	for i, v := range s.Values {
		fitted[i] = v * 0.9
	}

	c, err := FitChart(s, fitted, "Holt-Winters fit")
	if err != nil {
		t.Fatalf("FitChart: %v", err)
	}
	if countNear(c.Image(), fittedColor, 30) == 0 {
		t.Error("Fitted overlay is missing")
	}

	if _, err := FitChart(s, fitted[:10], ""); err == nil {
		t.Error("Expected length mismatch error")
	}

	fitted[3] = math.NaN()
	if _, err := FitChart(s, fitted, ""); err == nil {
		t.Error("Expected error for NaN fitted value")
	}
}

func TestComponentsChart(t *testing.T) {
	s := testSeries(48)
	level := make([]float64, s.Len())
	slope := make([]float64, s.Len())
	season := make([]float64, s.Len())
	for i := range level {
		level[i] = 5000 + 40*float64(i)
		slope[i] = 40
		season[i] = 2000 * math.Sin(2*math.Pi*float64(i)/12)
	}

	c, err := ComponentsChart(s.Timestamps,
		Component{"level", level}, Component{"slope", slope}, Component{"season", season})
	if err != nil {
		t.Fatalf("ComponentsChart: %v", err)
	}
	if len(c.Panels) != 3 {
		t.Fatalf("Expected 3 panels, got %d", len(c.Panels))
	}
	for i, want := range []string{"level", "slope", "season"} {
		if got := c.Panels[i].Title.Text; got != want {
			t.Errorf("Panel %d title = %q, want %q", i, got, want)
		}
	}
	checkSize(t, c.Image(), Width, Height*2)

	if _, err := ComponentsChart(s.Timestamps, Component{"short", level[:3]}); err == nil {
		t.Error("Expected length mismatch error")
	}
	if _, err := ComponentsChart(nil); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
}

func TestResidualChart(t *testing.T) {
	s := testSeries(60)
	resid := make([]float64, s.Len())
	for i := range resid {
		resid[i] = float64((i*7)%11 - 5)
	}
	acf := stats.ACFWithConfidence(resid, 24)
	pacf := stats.PACFWithConfidence(resid, 24)

	c, err := ResidualChart(s.Timestamps, resid, acf, pacf, "Residuals")
	if err != nil {
		t.Fatalf("ResidualChart: %v", err)
	}
	if len(c.Panels) != 3 {
		t.Fatalf("Expected residual, ACF and PACF panels, got %d", len(c.Panels))
	}
	if c.Panels[1].Title.Text != "ACF" || c.Panels[2].Title.Text != "PACF" {
		t.Errorf("Unexpected panel titles %q, %q", c.Panels[1].Title.Text, c.Panels[2].Title.Text)
	}
	img := c.Image()
	checkSize(t, img, Width, Height*2)
	if countNear(img, barColor, 10) == 0 {
		t.Error("Correlogram bars are missing")
	}

	c, err = ResidualChart(s.Timestamps, resid, acf, nil, "")
	if err != nil {
		t.Fatalf("Chart without PACF failed: %v", err)
	}
	if len(c.Panels) != 2 {
		t.Errorf("Expected 2 panels without PACF, got %d", len(c.Panels))
	}

	c, err = ResidualChart(s.Timestamps, resid, nil, nil, "")
	if err != nil {
		t.Fatalf("Chart without correlograms failed: %v", err)
	}
	checkSize(t, c.Image(), Width, Height)

	if _, err := ResidualChart(s.Timestamps[:5], resid, nil, nil, ""); err == nil {
		t.Error("Expected length mismatch error")
	}
}

func TestForecastChart(t *testing.T) {
	s := testSeries(84)
	h := 24
	point := make([]float64, h)
	lower := make([]float64, h)
	upper := make([]float64, h)
	for i := range point {
		point[i] = 8500 + 40*float64(i)
		lower[i] = point[i] - 500 - 50*float64(i)
		upper[i] = point[i] + 500 + 50*float64(i)
	}

	c, err := ForecastChart(s, s.Future(h), point, lower, upper, "Forecast")
	if err != nil {
		t.Fatalf("ForecastChart: %v", err)
	}
	img := c.Image()
	if countNear(img, bandColor, 4) < 100 {
		t.Error("Interval band is missing")
	}
	if countNear(img, forecastColor, 30) == 0 {
		t.Error("Forecast line is missing")
	}

	if _, err := ForecastChart(s, s.Future(h), point, lower[:2], upper, ""); err == nil {
		t.Error("Expected bounds mismatch error")
	}
}

func TestSave(t *testing.T) {
	c, err := SeriesChart(testSeries(24), "")
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "charts", "series.png")
	if err := Save(path, c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	checkSize(t, decoded, Width, Height)
}

func TestFormatValue(t *testing.T) {
	tests := map[float64]string{
		2500000: "2.5M",
		45000:   "45k",
		812:     "812",
		0.25:    "0.25",
		-0.5:    "-0.50",
	}
	for v, want := range tests {
		if got := formatValue(v); got != want {
			t.Errorf("formatValue(%v) = %q, want %q", v, got, want)
		}
	}
}

func TestValueTicks(t *testing.T) {
	ticks := valueTicks{}.Ticks(0, 50000)
	labelled := 0
	for _, tk := range ticks {
		if tk.Label == "" {
			continue
		}
		labelled++
		if tk.Value >= 1e4 && tk.Label[len(tk.Label)-1] != 'k' {
			t.Errorf("Tick %v labelled %q", tk.Value, tk.Label)
		}
	}
	if labelled == 0 {
		t.Error("Expected labelled ticks")
	}
}
