// Package plot renders the analysis charts as PNG images on gonum/plot.
package plot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/colornames"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Chart dimensions in pixels at DPI.
const (
	Width  = 1000
	Height = 450
	DPI    = 100
)

// ErrNoData is returned when a chart has nothing to draw.
var ErrNoData = errors.New("no data to plot")

var (
	seriesColor   = colornames.Steelblue
	fittedColor   = colornames.Firebrick
	forecastColor = colornames.Darkorange
	bandColor     = colornames.Peachpuff
	barColor      = colornames.Seagreen
	boundColor    = colornames.Mediumpurple
	zeroColor     = colornames.Dimgray
)

// Chart is one or more plots stacked vertically and rendered as one image.
type Chart struct {
	Panels []*gplot.Plot
	Width  int // pixels
	Height int // pixels
}

func newChart(height int, panels ...*gplot.Plot) *Chart {
	return &Chart{Panels: panels, Width: Width, Height: height}
}

func (c *Chart) canvas() *vgimg.Canvas {
	w := vg.Length(c.Width) / DPI * vg.Inch
	h := vg.Length(c.Height) / DPI * vg.Inch
	img := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(DPI))
	dc := draw.New(img)

	if len(c.Panels) == 1 {
		c.Panels[0].Draw(dc)
		return img
	}

	rows := make([][]*gplot.Plot, len(c.Panels))
	for i, p := range c.Panels {
		rows[i] = []*gplot.Plot{p}
	}
	tiles := draw.Tiles{
		Rows:      len(rows),
		Cols:      1,
		PadY:      vg.Points(8),
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
	}
	canvases := gplot.Align(rows, tiles, dc)
	for i, p := range c.Panels {
		p.Draw(canvases[i][0])
	}
	return img
}

// Image renders the chart.
func (c *Chart) Image() image.Image {
	return c.canvas().Image()
}

// Save writes c as PNG, creating parent directories.
func Save(path string, c *Chart) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := (vgimg.PngCanvas{Canvas: c.canvas()}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func newPlot(title string) *gplot.Plot {
	p := gplot.New()
	p.Title.Text = title
	p.Y.Tick.Marker = valueTicks{}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())
	return p
}

// timePlot is a plot whose X axis holds Unix seconds labelled by month.
func timePlot(title string) *gplot.Plot {
	p := newPlot(title)
	p.X.Tick.Marker = gplot.TimeTicks{Format: "2006-01"}
	return p
}

func timeXYs(periods []time.Time, values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(periods[i].Unix())
		pts[i].Y = v
	}
	return pts
}

func newLine(pts plotter.XYs, col color.Color, dashed bool) (*plotter.Line, error) {
	l, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	l.Color = col
	l.Width = vg.Points(1.5)
	if dashed {
		l.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
	}
	return l, nil
}

// hline spans [x0, x1] at y.
func hline(x0, x1, y float64, col color.Color, dashed bool) (*plotter.Line, error) {
	l, err := newLine(plotter.XYs{{X: x0, Y: y}, {X: x1, Y: y}}, col, dashed)
	if err != nil {
		return nil, err
	}
	l.Width = vg.Points(1)
	return l, nil
}

// valueTicks labels the default ticks compactly (45k, 2.5M).
type valueTicks struct{}

func (valueTicks) Ticks(min, max float64) []gplot.Tick {
	ticks := gplot.DefaultTicks{}.Ticks(min, max)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = formatValue(ticks[i].Value)
		}
	}
	return ticks
}

func formatValue(v float64) string {
	switch a := math.Abs(v); {
	case a >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case a >= 1e4:
		return fmt.Sprintf("%.0fk", v/1e3)
	case a >= 100:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
