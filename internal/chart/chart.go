// Package chart renders stacked price and indicator panels to PNG.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/dyike/twpbr/internal/calendar"
)

// ErrNoPoints is returned when no panel has a single drawable point.
var ErrNoPoints = errors.New("nothing to plot")

var (
	Blue   = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	Orange = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff}
	Green  = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
	Gray   = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
)

// Series is one line of a panel. Values[i] belongs to Dates[i] (YYYYMMDD).
type Series struct {
	Label  string
	Dates  []string
	Values []float64
	Color  color.Color
}

type Panel struct {
	Title    string
	XLabel   string
	YLabel   string
	Series   []Series
	ZeroLine bool
}

// Figure stacks panels top to bottom; Ratios are their relative heights.
type Figure struct {
	Width  vg.Length
	Height vg.Length
	Panels []Panel
	Ratios []float64
}

// xys converts a series to plot coordinates, skipping unparsable dates and
// non-finite values. X is Unix seconds.
func (s Series) xys() plotter.XYs {
	pts := make(plotter.XYs, 0, len(s.Dates))
	for i, d := range s.Dates {
		if i >= len(s.Values) {
			break
		}
		v := s.Values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		t, err := calendar.ParseDate(d)
		if err != nil {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(t.Unix()), Y: v})
	}
	return pts
}

func (p Panel) build() (*plot.Plot, int, error) {
	pl := plot.New()
	pl.Title.Text = p.Title
	pl.X.Label.Text = p.XLabel
	pl.Y.Label.Text = p.YLabel
	pl.X.Tick.Marker = plot.TimeTicks{
		Format: "2006-01-02",
		Time: func(t float64) time.Time {
			return time.Unix(int64(t), 0).In(calendar.Location())
		},
	}
	pl.Legend.Top = true

	grid := plotter.NewGrid()
	grid.Vertical.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	grid.Horizontal.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	pl.Add(grid)

	drawn := 0
	for _, s := range p.Series {
		pts := s.xys()
		if len(pts) == 0 {
			continue
		}
		line, scatter, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, 0, fmt.Errorf("series %s: %w", s.Label, err)
		}
		c := s.Color
		if c == nil {
			c = Blue
		}
		line.Color = c
		line.Width = vg.Points(1)
		scatter.Color = c
		scatter.Shape = draw.CircleGlyph{}
		scatter.Radius = vg.Points(1.5)

		pl.Add(line, scatter)
		pl.Legend.Add(s.Label, line, scatter)
		drawn += len(pts)
	}

	if p.ZeroLine && drawn > 0 {
		zero := plotter.NewFunction(func(float64) float64 { return 0 })
		zero.Color = Gray
		zero.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		pl.Add(zero)
	}
	return pl, drawn, nil
}

// WriteTo draws the figure as PNG into w.
func (f Figure) WriteTo(w io.Writer) (int64, error) {
	if len(f.Panels) == 0 {
		return 0, ErrNoPoints
	}
	width, height := f.Width, f.Height
	if width == 0 {
		width = 10 * vg.Inch
	}
	if height == 0 {
		height = 5 * vg.Inch
	}

	plots := make([]*plot.Plot, len(f.Panels))
	total := 0
	for i, p := range f.Panels {
		pl, n, err := p.build()
		if err != nil {
			return 0, err
		}
		plots[i] = pl
		total += n
	}
	if total == 0 {
		return 0, ErrNoPoints
	}

	ratios := f.Ratios
	if len(ratios) != len(plots) {
		ratios = make([]float64, len(plots))
		for i := range ratios {
			ratios[i] = 1
		}
	}
	sum := 0.0
	for _, r := range ratios {
		sum += r
	}

	img := vgimg.New(width, height)
	dc := draw.New(img)

	var offset vg.Length
	for i, pl := range plots {
		h := height * vg.Length(ratios[i]/sum)
		pl.Draw(draw.Crop(dc, 0, 0, height-offset-h, -offset))
		offset += h
	}

	return vgimg.PngCanvas{Canvas: img}.WriteTo(w)
}

// Render writes the figure to path as PNG, creating the directory.
func (f Figure) Render(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if _, err := f.WriteTo(file); err != nil {
		file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("draw chart: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close chart: %w", err)
	}

	logrus.WithFields(logrus.Fields{"module": "chart", "method": "Render", "path": path}).Info("chart written")
	return nil
}
