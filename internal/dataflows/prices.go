package dataflows

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dyike/twpbr/config"
	"github.com/dyike/twpbr/internal/calendar"
	"github.com/dyike/twpbr/models"
)

// TAIEXSymbol is the Yahoo symbol of the TAIEX index.
const TAIEXSymbol = "^TWII"

// YahooSymbol maps a TWSE stock number to its Yahoo Finance ticker.
func YahooSymbol(stock string) string {
	stock = strings.TrimSpace(strings.ToUpper(stock))
	if stock == TAIEXSymbol || strings.HasSuffix(stock, ".TW") {
		return stock
	}
	return stock + ".TW"
}

// NewPriceSource returns the closing price provider selected in config.
func NewPriceSource(cfg *Config) (PriceSource, error) {
	switch cfg.PriceSource {
	case config.PriceSourceYahoo, "":
		return NewYahooFinanceClient(cfg), nil
	case config.PriceSourceYahooChart:
		return NewYahooChartClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown price source %q", cfg.PriceSource)
	}
}

// requestSpan returns the half-open range [first date, last date + 1 day)
// covering dates.
func requestSpan(dates []string) (start, end time.Time, err error) {
	if len(dates) == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("no dates requested")
	}
	sorted := append([]string(nil), dates...)
	sort.Strings(sorted)

	start, err = calendar.ParseDate(sorted[0])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	last, err := calendar.ParseDate(sorted[len(sorted)-1])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, last.AddDate(0, 0, 1), nil
}

// pickCloses lays bars over the requested dates; dates without a bar map to nil.
func pickCloses(dates []string, bars map[string]float64) models.Closes {
	result := make(models.Closes, len(dates))
	for _, d := range dates {
		if v, ok := bars[d]; ok {
			v := v
			result[d] = &v
		} else {
			result[d] = nil
		}
	}
	return result
}

// barDate converts a bar timestamp to the exchange date key.
func barDate(unix int64) string {
	return time.Unix(unix, 0).In(calendar.Location()).Format(calendar.DateLayout)
}
