package indicators

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/twpbr/models"
)

const tolerance = 1e-3

func assertSeries(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "index %d: want NaN, got %v", i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], tolerance, "index %d", i)
	}
}

func TestRollingMean(t *testing.T) {
	nan := math.NaN()

	assertSeries(t, []float64{nan, nan, 2, 3, 4}, RollingMean([]float64{1, 2, 3, 4, 5}, 3))
	assertSeries(t, []float64{nan, nan, nan, 3.5, 4.5}, RollingMean([]float64{1, nan, 3, 4, 5}, 2))
	assertSeries(t, []float64{nan, nan}, RollingMean([]float64{1, 2}, 3))
}

func TestRollingStd(t *testing.T) {
	nan := math.NaN()

	assertSeries(t, []float64{nan, nan, 1, 1, 1}, RollingStd([]float64{1, 2, 3, 4, 5}, 3))
	// sample deviation of 2,4,4,4,5,5,7,9 is sqrt(32/7)
	std := RollingStd([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	assert.InDelta(t, math.Sqrt(32.0/7.0), std[7], tolerance)
}

func TestBollingerAndPercentB(t *testing.T) {
	upper, lower := Bollinger([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8, 2)
	sd := math.Sqrt(32.0 / 7.0)

	assert.InDelta(t, 5+2*sd, upper[7], tolerance)
	assert.InDelta(t, 5-2*sd, lower[7], tolerance)
	assert.True(t, math.IsNaN(upper[6]))

	assert.InDelta(t, 50.0, PercentB(5, 10, 0), tolerance)
	assert.InDelta(t, 100.0, PercentB(10, 10, 0), tolerance)
	assert.InDelta(t, -25.0, PercentB(-2.5, 10, 0), tolerance)
}

func ptr(v float64) *float64 { return &v }

func TestPBRIndicator(t *testing.T) {
	values := map[string]float64{
		"20241231": 99, // no close, dropped by the join
		"20250101": 1,
		"20250102": 2,
		"20250103": 3,
		"20250104": 4,
		"20250105": 5,
		"20250106": 6,
		"20250107": 7,
	}
	closes := models.Closes{
		"20250101": ptr(10),
		"20250102": ptr(11),
		"20250103": ptr(13),
		"20250104": ptr(12),
		"20250105": ptr(15),
		"20250106": ptr(14),
		"20250107": nil,
		"20250108": ptr(20), // no value, dropped by the join
	}

	points := PBRIndicator(values, closes, 2, 2)

	require.Len(t, points, 3)
	want := []struct {
		date      string
		closePctB float64
		diff      float64
	}{
		{"20250104", 61.785, 5.893},
		{"20250105", 57.857, 9.821},
		{"20250106", 55.893, 11.785},
	}
	for i, w := range want {
		p := points[i]
		assert.Equal(t, w.date, p.Date)
		assert.InDelta(t, 67.678, p.ValuePctB, tolerance, w.date)
		assert.InDelta(t, w.closePctB, p.ClosePctB, tolerance, w.date)
		assert.InDelta(t, w.diff, p.Diff, tolerance, w.date)
	}
	assert.InDelta(t, 12.0, points[0].CloseMA, tolerance)
	assert.InDelta(t, 3.0, points[0].ValueMA, tolerance)
}

func TestPBRIndicatorFlatSeriesIsDropped(t *testing.T) {
	values := map[string]float64{}
	closes := models.Closes{}
	for i := 1; i <= 9; i++ {
		d := fmt.Sprintf("202501%02d", i)
		values[d] = 5
		closes[d] = ptr(100)
	}

	assert.Empty(t, PBRIndicator(values, closes, 3, 2))
}

func valuationRows(n int, pe, dy func(i int) float64) []models.ValuationRow {
	rows := make([]models.ValuationRow, n)
	for i := range rows {
		rows[i] = models.ValuationRow{
			Date:          fmt.Sprintf("202502%02d", i+1),
			PE:            pe(i),
			DividendYield: dy(i),
		}
	}
	return rows
}

func TestValuationIndicator(t *testing.T) {
	rows := valuationRows(8,
		func(i int) float64 { return 10 + float64(i) },
		func(i int) float64 { return 5 - 0.1*float64(i) },
	)

	points := ValuationIndicator(rows, 2, 2)

	require.Len(t, points, 3)
	assert.Equal(t, "20250206", points[0].Date)
	assert.Equal(t, "20250208", points[2].Date)
	for _, p := range points {
		assert.InDelta(t, 67.678, p.PEPctB, tolerance)
		assert.InDelta(t, 32.322, p.DYPctB, tolerance)
		assert.InDelta(t, -35.355, p.Diff, tolerance)
	}
	assert.InDelta(t, 13.0, points[0].PEMA5, tolerance)
}

func TestValuationIndicatorDropsZeroAndMissing(t *testing.T) {
	t.Run("flat yield gives zero %b", func(t *testing.T) {
		rows := valuationRows(10,
			func(i int) float64 { return 10 + float64(i) },
			func(i int) float64 { return 4 },
		)
		assert.Empty(t, ValuationIndicator(rows, 2, 2))
	})

	t.Run("missing P/E blanks its windows", func(t *testing.T) {
		rows := valuationRows(12,
			func(i int) float64 {
				if i == 7 {
					return math.NaN()
				}
				return 10 + float64(i)
			},
			func(i int) float64 { return 5 - 0.1*float64(i) },
		)
		points := ValuationIndicator(rows, 2, 2)

		dates := make([]string, len(points))
		for i, p := range points {
			dates[i] = p.Date
		}
		assert.Equal(t, []string{"20250206", "20250207"}, dates)
	})
}
