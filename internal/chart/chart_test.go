package chart

import (
	"bytes"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/twpbr/models"
)

func TestSeriesSkipsBadPoints(t *testing.T) {
	s := Series{
		Dates:  []string{"20250102", "bad", "20250106", "20250107", "20250108"},
		Values: []float64{1, 2, math.NaN(), math.Inf(1), 5},
	}
	pts := s.xys()
	require.Len(t, pts, 2)
	assert.Equal(t, 1.0, pts[0].Y)
	assert.Equal(t, 5.0, pts[1].Y)
	assert.Less(t, pts[0].X, pts[1].X)
}

func TestIndicatorFigurePNG(t *testing.T) {
	points := []models.IndicatorPoint{
		{Date: "20250102", Close: 23000, Diff: 4.5},
		{Date: "20250103", Close: 22900, Diff: -3.25},
		{Date: "20250106", Close: 23100, Diff: 1},
	}
	fig := IndicatorFigure("^TWII", "Day", points)
	assert.Equal(t, []float64{2, 1}, fig.Ratios)
	assert.Equal(t, "^TWII Day Closing price trend", fig.Panels[0].Title)
	assert.Equal(t, "^TWII PB-C Day Indicator Trends", fig.Panels[1].Title)

	var buf bytes.Buffer
	_, err := fig.WriteTo(&buf)
	require.NoError(t, err)

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), img.Bounds().Dy())
}

func TestValuationFigureRender(t *testing.T) {
	close1 := 1075.0
	points := []models.ValuationPoint{
		{Date: "20250206", Diff: -35.3, Close: &close1},
		{Date: "20250207", Diff: -20.1},
	}
	fig := ValuationFigure("2330", points)
	assert.Equal(t, []float64{1.5, 1}, fig.Ratios)
	assert.Len(t, fig.Panels[0].Series[0].Dates, 1)

	path := filepath.Join(t.TempDir(), "results", "2330_pct_b_dif.png")
	require.NoError(t, fig.Render(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestEmptyFigure(t *testing.T) {
	var buf bytes.Buffer
	_, err := IndicatorFigure("2330", "Week", nil).WriteTo(&buf)
	assert.ErrorIs(t, err, ErrNoPoints)

	path := filepath.Join(t.TempDir(), "empty.png")
	require.ErrorIs(t, IndicatorFigure("2330", "Week", nil).Render(path), ErrNoPoints)
	assert.NoFileExists(t, path)
}
