package collector

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dyike/twpbr/internal/calendar"
	"github.com/dyike/twpbr/internal/chart"
	"github.com/dyike/twpbr/internal/dataflows"
	"github.com/dyike/twpbr/internal/display"
	"github.com/dyike/twpbr/internal/storage"
	"github.com/dyike/twpbr/models"
	"github.com/dyike/twpbr/pkg/indicators"
)

const (
	ModeDay  = "day"
	ModeWeek = "week"

	summaryRows = 10
)

// Result describes the files and run produced by a plot.
type Result struct {
	RunID     string
	ImagePath string
	JSONPath  string
}

// PlotResult is a PB-C run.
type PlotResult struct {
	Result
	Points []models.IndicatorPoint
}

// ValuationResult is a %b_DIF run.
type ValuationResult struct {
	Result
	Points []models.ValuationPoint
}

// ModeText is the chart label of a plot mode.
func ModeText(mode string) string {
	switch mode {
	case ModeWeek:
		return "Week"
	default:
		return "Day"
	}
}

// Plot computes the PB-C indicator of stock against the cached counts and
// renders it. Week mode keeps the first workday of each ISO week. last > 0
// keeps only the most recent entries of the series.
func (c *Collector) Plot(ctx context.Context, mode, stock string, last int) (*PlotResult, error) {
	if mode != ModeDay && mode != ModeWeek {
		return nil, fmt.Errorf("unknown plot mode %q", mode)
	}
	stock = strings.TrimSpace(stock)
	if stock == "" {
		return nil, errors.New("stock code is required")
	}
	log := logrus.WithFields(logrus.Fields{"module": "collector", "method": "Plot", "mode": mode, "stock": stock})

	_, cached := c.LoadCache(ctx)
	// null counts stay out of the series
	values := cached.Known()
	if len(values) == 0 {
		return nil, ErrEmptyCache
	}
	if mode == ModeWeek {
		values = calendar.FirstWorkdayEachWeek(values)
	}
	values = calendar.Tail(values, last)
	dates := calendar.SortedKeys(values)

	closes, err := c.prices.Closes(ctx, stock, dates)
	if err != nil {
		return nil, fmt.Errorf("closing prices for %s: %w", stock, err)
	}

	points := indicators.PBRIndicator(values, closes, c.cfg.BollingerLength, c.cfg.BandWidth)
	log.WithFields(logrus.Fields{"dates": len(dates), "points": len(points)}).Info("indicator computed")

	text := ModeText(mode)
	c.display.ShowIndicatorSummary(stock, text, points, summaryRows)
	if len(points) == 0 {
		return &PlotResult{Points: points}, fmt.Errorf("%s: %d dates are not enough for length %d", stock, len(dates), c.cfg.BollingerLength)
	}

	result := &PlotResult{Points: points}
	result.Result = c.publish(stock, mode, chart.IndicatorFigure(stock, text, points), points)
	result.RunID = c.record(ctx, storage.Run{
		Kind:      mode,
		Stock:     stock,
		ImagePath: result.ImagePath,
	}, storage.IndicatorPoints(points))
	return result, nil
}

// Valuation computes %b_DIF for stock from startMonth through endMonth
// (YYYYMM; empty endMonth means the current month) and renders it next to the
// closing price.
func (c *Collector) Valuation(ctx context.Context, stock, startMonth, endMonth string) (*ValuationResult, error) {
	stock = strings.TrimSpace(stock)
	if stock == "" {
		return nil, errors.New("stock code is required")
	}
	if endMonth == "" {
		endMonth = calendar.Today()[:6]
	}
	log := logrus.WithFields(logrus.Fields{"module": "collector", "method": "Valuation", "stock": stock})

	rows, err := c.valuation.FetchValuation(ctx, stock, startMonth, endMonth)
	if err != nil {
		return nil, err
	}

	points := indicators.ValuationIndicator(rows, c.cfg.BollingerLength, c.cfg.BandWidth)
	if len(points) == 0 {
		c.display.ShowValuationSummary(stock, points, summaryRows)
		return &ValuationResult{Points: points}, fmt.Errorf("%s: %d rows are not enough for length %d: %w",
			stock, len(rows), c.cfg.BollingerLength, dataflows.ErrNoData)
	}

	dates := make([]string, len(points))
	for i, p := range points {
		dates[i] = p.Date
	}
	closes, err := c.prices.Closes(ctx, stock, dates)
	if err != nil {
		log.WithError(err).Warn("closing prices unavailable, plotting indicator only")
	}
	for i := range points {
		points[i].Close = closes[points[i].Date]
	}

	c.display.ShowValuationSummary(stock, points, summaryRows)

	result := &ValuationResult{Points: points}
	result.Result = c.publish(stock, "pct_b_dif", chart.ValuationFigure(stock, points), points)
	result.RunID = c.record(ctx, storage.Run{
		Kind:      storage.KindValuation,
		Stock:     stock,
		ImagePath: result.ImagePath,
	}, storage.ValuationPoints(points))
	return result, nil
}

// publish writes the chart and the JSON export into the results directory.
// Failures are logged; the missing file is left out of the result.
func (c *Collector) publish(stock, kind string, fig chart.Figure, points any) Result {
	log := logrus.WithFields(logrus.Fields{"module": "collector", "method": "publish", "stock": stock, "kind": kind})

	base := filepath.Join(c.cfg.ResultsDir, display.ResultFileName(stock, kind))
	var res Result

	if err := fig.Render(base + ".png"); err != nil {
		log.WithError(err).Warn("chart not written")
	} else {
		res.ImagePath = base + ".png"
	}
	if err := display.SaveResultsToFile(base+".json", stock, kind, points); err != nil {
		log.WithError(err).Warn("results not written")
	} else {
		res.JSONPath = base + ".json"
	}
	return res
}
