package chart

import (
	"fmt"

	"github.com/dyike/twpbr/models"
)

// IndicatorFigure lays out the PB-C chart: closing price above the indicator,
// heights 2:1.
func IndicatorFigure(code, text string, points []models.IndicatorPoint) Figure {
	dates := make([]string, len(points))
	closes := make([]float64, len(points))
	diffs := make([]float64, len(points))
	for i, p := range points {
		dates[i] = p.Date
		closes[i] = p.Close
		diffs[i] = p.Diff
	}

	return Figure{
		Panels: []Panel{
			{
				Title:  fmt.Sprintf("%s %s Closing price trend", code, text),
				XLabel: "Date",
				YLabel: "Close",
				Series: []Series{{Label: "Close Price", Dates: dates, Values: closes, Color: Blue}},
			},
			{
				Title:    fmt.Sprintf("%s PB-C %s Indicator Trends", code, text),
				XLabel:   "PB-C",
				YLabel:   "PB-C Value",
				Series:   []Series{{Label: "PB-C", Dates: dates, Values: diffs, Color: Orange}},
				ZeroLine: true,
			},
		},
		Ratios: []float64{2, 1},
	}
}

// ValuationFigure lays out the %b_DIF chart: closing price above the
// indicator, heights 1.5:1. Dates without a close are left out of the top
// panel only.
func ValuationFigure(code string, points []models.ValuationPoint) Figure {
	var closeDates []string
	var closes []float64
	dates := make([]string, len(points))
	diffs := make([]float64, len(points))
	for i, p := range points {
		dates[i] = p.Date
		diffs[i] = p.Diff
		if p.Close != nil {
			closeDates = append(closeDates, p.Date)
			closes = append(closes, *p.Close)
		}
	}

	return Figure{
		Panels: []Panel{
			{
				Title:  fmt.Sprintf("%s Close", code),
				YLabel: "Close",
				Series: []Series{{Label: "Close", Dates: closeDates, Values: closes, Color: Green}},
			},
			{
				Title:    "percent_b_diff",
				XLabel:   "Date",
				YLabel:   "percent_b_diff",
				Series:   []Series{{Label: "%b_DIF", Dates: dates, Values: diffs, Color: Blue}},
				ZeroLine: true,
			},
		},
		Ratios: []float64{1.5, 1},
	}
}
