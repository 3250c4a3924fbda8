package dataflows

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dyike/twpbr/config"
	"github.com/dyike/twpbr/models"
)

// Config is an alias for the main application config
type Config = config.Config

// ErrNoData reports that a provider answered but had nothing for the request,
// typically a non-trading day.
var ErrNoData = errors.New("no data")

// PBRSource downloads the count of stocks trading below book value for a date.
type PBRSource interface {
	FetchPBRCount(ctx context.Context, date string) (models.PBRCounts, error)
}

// ValuationSource downloads the per-stock P/E, dividend yield and P/B history.
type ValuationSource interface {
	FetchValuation(ctx context.Context, stockNo, startMonth, endMonth string) ([]models.ValuationRow, error)
}

// PriceSource returns closing prices for the requested dates. Every requested
// date is present in the result; dates without a bar map to nil.
type PriceSource interface {
	Closes(ctx context.Context, stock string, dates []string) (models.Closes, error)
}

// twseJSONReport is the JSON envelope of the TWSE exchange reports.
type twseJSONReport struct {
	Stat   string       `json:"stat"`
	Date   string       `json:"date"`
	Title  string       `json:"title"`
	Fields []string     `json:"fields"`
	Data   [][]jsonCell `json:"data"`
	Notes  []string     `json:"notes,omitempty"`
}

// jsonCell accepts both quoted and bare numeric cells.
type jsonCell string

func (c *jsonCell) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = jsonCell(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = jsonCell(n.String())
	return nil
}

// yahooChartResponse is the top-level container of the v8 chart endpoint
type yahooChartResponse struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooChartResult struct {
	Meta struct {
		Symbol           string `json:"symbol"`
		ExchangeTimezone string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}
