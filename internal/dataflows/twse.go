package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/dyike/twpbr/config"
	"github.com/dyike/twpbr/internal/calendar"
	"github.com/dyike/twpbr/models"
)

const (
	pbrDailyPath  = "/rwd/zh/afterTrading/BWIBBU_d"
	valuationPath = "/exchangeReport/BWIBBU"

	// PBR column in the daily BWIBBU report
	pbrColumn = "股價淨值比"
)

// TWSEClient handles Taiwan Stock Exchange report downloads
type TWSEClient struct {
	client    *resty.Client
	format    string
	probeDays int
	interval  time.Duration
}

// NewTWSEClient creates a new TWSE client
func NewTWSEClient(config *Config) *TWSEClient {
	client := resty.New()
	client.SetBaseURL(config.TWSEBaseURL)
	client.SetTimeout(config.HTTPTimeout)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; twpbr/1.0)")

	return &TWSEClient{
		client:    client,
		format:    config.TWSEFormat,
		probeDays: config.ProbeDays,
		interval:  config.BatchInterval,
	}
}

// FetchPBRCount downloads the daily BWIBBU report for date (YYYYMMDD) and
// counts the stocks whose price-to-book ratio is below 1. A date without
// trading yields an empty map and a nil error.
func (tc *TWSEClient) FetchPBRCount(ctx context.Context, date string) (models.PBRCounts, error) {
	log := logrus.WithFields(logrus.Fields{"module": "twse", "method": "FetchPBRCount", "date": date})
	log.Debug("downloading daily BWIBBU report")

	format := tc.format
	if format == "" {
		format = config.FormatCSV
	}

	resp, err := tc.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"date":     date,
			"response": format,
		}).
		Get(pbrDailyPath)
	if err != nil {
		return nil, fmt.Errorf("download BWIBBU_d for %s: %w", date, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("download BWIBBU_d for %s: http status %d", date, resp.StatusCode())
	}
	if len(resp.Body()) == 0 {
		log.Info("empty report, no trading data")
		return models.PBRCounts{}, nil
	}

	text, err := DecodeTWSEText(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("read BWIBBU_d for %s: %w", date, err)
	}

	var stats pbrStats
	if format == config.FormatHTML {
		stats, err = parsePBRHTML(text)
	} else {
		stats, err = parsePBRCSV(text)
	}
	if err != nil {
		return nil, fmt.Errorf("parse BWIBBU_d for %s: %w", date, err)
	}
	if !stats.hasColumn {
		log.Info("report has no PBR column, no trading data")
		return models.PBRCounts{}, nil
	}

	log.WithFields(logrus.Fields{"rows": stats.rows, "below_book": stats.belowBook}).Info("report downloaded")
	return models.PBRCounts{date: float64(stats.belowBook)}, nil
}

// FetchValuation downloads the per-stock BWIBBU report for every month from
// startMonth to endMonth (YYYYMM). The report is addressed by any date inside
// the month; when the first day has no data the probe moves one day forward,
// up to the configured probe limit. A non-JSON answer or an HTTP error skips
// the month.
func (tc *TWSEClient) FetchValuation(ctx context.Context, stockNo, startMonth, endMonth string) ([]models.ValuationRow, error) {
	log := logrus.WithFields(logrus.Fields{"module": "twse", "method": "FetchValuation", "stock": stockNo})

	months, err := calendar.MonthRange(startMonth, endMonth)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]models.ValuationRow)
	first := true
	for _, month := range months {
		for day := 1; day <= tc.probeDays; day++ {
			if !first {
				if err := Sleep(ctx, tc.interval); err != nil {
					return nil, err
				}
			}
			first = false

			date := fmt.Sprintf("%s%02d", month, day)
			rows, err := tc.fetchValuationMonth(ctx, stockNo, date)
			if errors.Is(err, ErrNoData) {
				log.WithField("date", date).Debug("no data, probing next day")
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.WithField("date", date).WithError(err).Warn("skipping month")
				break
			}
			for _, r := range rows {
				byDate[r.Date] = r
			}
			log.WithFields(logrus.Fields{"date": date, "rows": len(rows)}).Info("month downloaded")
			break
		}
	}

	if len(byDate) == 0 {
		return nil, fmt.Errorf("valuation for %s from %s: %w", stockNo, startMonth, ErrNoData)
	}

	result := make([]models.ValuationRow, 0, len(byDate))
	for _, r := range byDate {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

func (tc *TWSEClient) fetchValuationMonth(ctx context.Context, stockNo, date string) ([]models.ValuationRow, error) {
	resp, err := tc.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"date":     date,
			"stockNo":  stockNo,
			"response": "json",
		}).
		Get(valuationPath)
	if err != nil {
		return nil, fmt.Errorf("download BWIBBU: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("download BWIBBU: http status %d", resp.StatusCode())
	}

	var report twseJSONReport
	if err := json.Unmarshal(resp.Body(), &report); err != nil {
		return nil, fmt.Errorf("BWIBBU answer is not JSON (%.80q): %w", resp.String(), err)
	}
	if report.Data == nil {
		return nil, ErrNoData
	}
	return parseValuationReport(report)
}
