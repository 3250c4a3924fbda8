package dataflows

import (
	"context"
	"fmt"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/dyike/twpbr/models"
)

// YahooFinanceClient reads daily bars through the finance-go chart API
type YahooFinanceClient struct {
	retry *RetryConfig
}

// NewYahooFinanceClient creates a new Yahoo Finance client
func NewYahooFinanceClient(config *Config) *YahooFinanceClient {
	return &YahooFinanceClient{
		retry: DefaultRetryConfig(),
	}
}

// Closes gets the closing price of stock on each of dates
func (yf *YahooFinanceClient) Closes(ctx context.Context, stock string, dates []string) (models.Closes, error) {
	if len(dates) == 0 {
		return models.Closes{}, nil
	}
	start, end, err := requestSpan(dates)
	if err != nil {
		return nil, err
	}

	symbol := YahooSymbol(stock)
	log := logrus.WithFields(logrus.Fields{"module": "yahoo", "method": "Closes", "symbol": symbol})

	var bars map[string]float64
	err = WithRetry(ctx, yf.retry, func() error {
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}

		iter := chart.Get(params)

		bars = make(map[string]float64)
		for iter.Next() {
			bar := iter.Bar()
			// halted sessions come back with a zero close
			if !bar.Close.GreaterThan(decimal.Zero) {
				continue
			}
			price, _ := bar.Close.Round(4).Float64()
			bars[barDate(int64(bar.Timestamp))] = price
		}

		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{"bars": len(bars), "requested": len(dates)}).Info("closing prices downloaded")
	return pickCloses(dates, bars), nil
}
