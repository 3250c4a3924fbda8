package dataflows

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dyike/twpbr/internal/calendar"
	"github.com/dyike/twpbr/models"
)

type pbrStats struct {
	hasColumn bool
	rows      int
	belowBook int
}

func (s *pbrStats) add(row []string, col int) {
	if col >= len(row) {
		return
	}
	pb := ParseNumber(row[col])
	if math.IsNaN(pb) {
		return
	}
	s.rows++
	if pb < 1 {
		s.belowBook++
	}
}

// parsePBRCSV reads the CSV flavour of BWIBBU_d: a title line, a header line,
// the stock rows, then free-text notes which are ignored.
func parsePBRCSV(text string) (pbrStats, error) {
	var stats pbrStats

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	// title line
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return stats, nil
		}
		return stats, fmt.Errorf("read title: %w", err)
	}

	header, err := reader.Read()
	if err == io.EOF {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("read header: %w", err)
	}

	col := columnIndex(header, pbrColumn)
	if col < 0 {
		return stats, nil
	}
	stats.hasColumn = true

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read row: %w", err)
		}
		stats.add(row, col)
	}
	return stats, nil
}

// parsePBRHTML reads the HTML flavour of BWIBBU_d. The header is the first
// table row holding the PBR column; every following row is a stock.
func parsePBRHTML(text string) (pbrStats, error) {
	var stats pbrStats

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return stats, fmt.Errorf("parse html: %w", err)
	}

	col := -1
	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})

		if col < 0 {
			if idx := columnIndex(cells, pbrColumn); idx >= 0 {
				col = idx
				stats.hasColumn = true
			}
			return
		}
		stats.add(cells, col)
	})
	return stats, nil
}

// parseValuationReport converts the per-stock BWIBBU JSON rows. Columns are
// located by field name.
func parseValuationReport(report twseJSONReport) ([]models.ValuationRow, error) {
	dateCol := columnIndex(report.Fields, "日期")
	if dateCol < 0 {
		return nil, fmt.Errorf("BWIBBU fields %v lack a date column", report.Fields)
	}
	yieldCol := columnIndex(report.Fields, "殖利率(%)")
	yearCol := columnIndex(report.Fields, "股利年度")
	peCol := columnIndex(report.Fields, "本益比")
	pbCol := columnIndex(report.Fields, pbrColumn)
	periodCol := columnIndex(report.Fields, "財報年/季")

	cell := func(row []jsonCell, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return string(row[i])
	}

	rows := make([]models.ValuationRow, 0, len(report.Data))
	for _, raw := range report.Data {
		date, err := calendar.ROCToGregorian(cell(raw, dateCol))
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.ValuationRow{
			Date:          date,
			DividendYield: ParseNumber(cell(raw, yieldCol)),
			DividendYear:  cell(raw, yearCol),
			PE:            ParseNumber(cell(raw, peCol)),
			PB:            ParseNumber(cell(raw, pbCol)),
			FiscalPeriod:  cell(raw, periodCol),
		})
	}
	return rows, nil
}
