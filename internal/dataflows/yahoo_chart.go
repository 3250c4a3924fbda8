package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/dyike/twpbr/models"
)

// YahooChartClient reads daily bars straight from Yahoo's v8 chart endpoint.
type YahooChartClient struct {
	client *resty.Client
	retry  *RetryConfig
}

// NewYahooChartClient creates a new chart endpoint client
func NewYahooChartClient(config *Config) *YahooChartClient {
	client := resty.New()
	client.SetBaseURL(config.YahooChartBaseURL)
	client.SetTimeout(config.HTTPTimeout)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; twpbr/1.0)")

	return &YahooChartClient{
		client: client,
		retry:  DefaultRetryConfig(),
	}
}

// Closes gets the closing price of stock on each of dates
func (yc *YahooChartClient) Closes(ctx context.Context, stock string, dates []string) (models.Closes, error) {
	if len(dates) == 0 {
		return models.Closes{}, nil
	}
	start, end, err := requestSpan(dates)
	if err != nil {
		return nil, err
	}

	symbol := YahooSymbol(stock)
	log := logrus.WithFields(logrus.Fields{"module": "yahoo-chart", "method": "Closes", "symbol": symbol})

	var bars map[string]float64
	err = WithRetry(ctx, yc.retry, func() error {
		resp, err := yc.client.R().
			SetContext(ctx).
			SetPathParam("symbol", symbol).
			SetQueryParams(map[string]string{
				"period1":  strconv.FormatInt(start.Unix(), 10),
				"period2":  strconv.FormatInt(end.Unix(), 10),
				"interval": "1d",
			}).
			Get("/v8/finance/chart/{symbol}")
		if err != nil {
			return fmt.Errorf("failed to fetch chart for %s: %w", symbol, err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("chart API error %d: %s", resp.StatusCode(), resp.String())
		}

		var chart yahooChartResponse
		if err := json.Unmarshal(resp.Body(), &chart); err != nil {
			return fmt.Errorf("failed to parse chart response: %w", err)
		}
		if chart.Chart.Error != nil {
			return fmt.Errorf("chart API error %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)
		}

		bars = make(map[string]float64)
		for _, result := range chart.Chart.Result {
			if len(result.Indicators.Quote) == 0 {
				continue
			}
			closes := result.Indicators.Quote[0].Close
			for i, ts := range result.Timestamp {
				if i >= len(closes) || closes[i] == nil {
					continue
				}
				bars[barDate(ts)] = *closes[i]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{"bars": len(bars), "requested": len(dates)}).Info("closing prices downloaded")
	return pickCloses(dates, bars), nil
}
