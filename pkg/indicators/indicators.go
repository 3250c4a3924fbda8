package indicators

import (
	"math"
	"sort"

	"github.com/dyike/twpbr/models"
)

const (
	// pbcSmoothing is the short average applied before the PB-C bands.
	pbcSmoothing = 3
	// valuationSmoothing is the short average applied before the %b_DIF bands.
	valuationSmoothing = 5
)

// PBRIndicator computes the PB-C indicator. values and closes are joined on
// date (dates missing from either side are dropped), then for each series s:
//
//	ma   = mean3(s)
//	up   = meanN(ma) + band*stdN(s)
//	down = meanN(ma) - band*stdN(s)
//	%b   = (ma - down) * 100 / (up - down)
//
// Diff is the value %b minus the close %b. Rows without a close or without a
// finite Diff are left out.
func PBRIndicator(values map[string]float64, closes models.Closes, length int, band float64) []models.IndicatorPoint {
	dates := make([]string, 0, len(values))
	for d := range values {
		if _, ok := closes[d]; ok {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)

	vs := make([]float64, len(dates))
	cs := make([]float64, len(dates))
	for i, d := range dates {
		vs[i] = values[d]
		if c := closes[d]; c != nil {
			cs[i] = *c
		} else {
			cs[i] = math.NaN()
		}
	}

	vMA, vPctB := bandPosition(vs, length, band)
	cMA, cPctB := bandPosition(cs, length, band)

	points := make([]models.IndicatorPoint, 0, len(dates))
	for i, d := range dates {
		diff := vPctB[i] - cPctB[i]
		if math.IsNaN(cs[i]) || !isFinite(diff) {
			continue
		}
		points = append(points, models.IndicatorPoint{
			Date:      d,
			Value:     vs[i],
			ValueMA:   vMA[i],
			ValuePctB: vPctB[i],
			Close:     cs[i],
			CloseMA:   cMA[i],
			ClosePctB: cPctB[i],
			Diff:      diff,
		})
	}
	return points
}

func bandPosition(series []float64, length int, band float64) (ma, pctB []float64) {
	ma = RollingMean(series, pbcSmoothing)
	mid := RollingMean(ma, length)
	std := RollingStd(series, length)

	pctB = make([]float64, len(series))
	for i := range series {
		up := mid[i] + band*std[i]
		down := mid[i] - band*std[i]
		pctB[i] = PercentB(ma[i], up, down)
	}
	return ma, pctB
}

// ValuationIndicator computes %b_DIF from the per-stock valuation report.
// P/E and dividend yield are smoothed with a 5-day mean, Bollinger bands of
// length/band are taken on the smoothed series, and Diff is the yield %b minus
// the P/E %b. An undefined %b counts as 0, and rows where either %b or Diff is
// 0, or any input is missing, are dropped. rows must be sorted by date.
func ValuationIndicator(rows []models.ValuationRow, length int, band float64) []models.ValuationPoint {
	pe := make([]float64, len(rows))
	dy := make([]float64, len(rows))
	for i, r := range rows {
		pe[i] = r.PE
		dy[i] = r.DividendYield
	}

	peMA := RollingMean(pe, valuationSmoothing)
	dyMA := RollingMean(dy, valuationSmoothing)
	peUp, peDown := Bollinger(peMA, length, band)
	dyUp, dyDown := Bollinger(dyMA, length, band)

	points := make([]models.ValuationPoint, 0, len(rows))
	for i, r := range rows {
		peB := zeroNaN(PercentB(peMA[i], peUp[i], peDown[i]))
		dyB := zeroNaN(PercentB(dyMA[i], dyUp[i], dyDown[i]))
		diff := dyB - peB

		if hasNaN([]float64{pe[i], dy[i], peMA[i], dyMA[i]}) {
			continue
		}
		if peB == 0 || dyB == 0 || diff == 0 || !isFinite(diff) {
			continue
		}
		points = append(points, models.ValuationPoint{
			Date:          r.Date,
			PE:            pe[i],
			DividendYield: dy[i],
			PEMA5:         peMA[i],
			DYMA5:         dyMA[i],
			PEPctB:        peB,
			DYPctB:        dyB,
			Diff:          diff,
		})
	}
	return points
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
