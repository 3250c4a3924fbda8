package models

import (
	"bytes"
	"encoding/json"
	"math"
)

// PBRCounts maps a trading date (YYYYMMDD) to the number of listed stocks whose
// price-to-book ratio was below 1 that day. It is the content of the cache file.
// A count stored as JSON null is held as NaN and written back as null.
type PBRCounts map[string]float64

// MarshalJSON writes the counts with sorted keys, NaN as null.
func (p PBRCounts) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	out := make(map[string]*float64, len(p))
	for date, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[date] = nil
			continue
		}
		v := v
		out[date] = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts integer, float and null counts.
func (p *PBRCounts) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var raw map[string]*float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	counts := make(PBRCounts, len(raw))
	for date, v := range raw {
		if v == nil {
			counts[date] = math.NaN()
			continue
		}
		counts[date] = *v
	}
	*p = counts
	return nil
}

// Known returns the entries with a count, dropping null ones.
func (p PBRCounts) Known() map[string]float64 {
	out := make(map[string]float64, len(p))
	for date, v := range p {
		if !math.IsNaN(v) {
			out[date] = v
		}
	}
	return out
}

// Closes maps a trading date (YYYYMMDD) to a closing price. A nil entry means
// the provider had no bar for that date and is stored as JSON null.
type Closes map[string]*float64

// ValuationRow is one day of the per-stock BWIBBU report.
type ValuationRow struct {
	Date          string  `json:"date"`
	DividendYield float64 `json:"dividend_yield"`
	DividendYear  string  `json:"dividend_year"`
	PE            float64 `json:"pe"`
	PB            float64 `json:"pb"`
	FiscalPeriod  string  `json:"fiscal_period"`
}

// IndicatorPoint is one row of the PB-C indicator: the %b of the PBR count
// minus the %b of the closing price.
type IndicatorPoint struct {
	Date      string  `json:"date"`
	Value     float64 `json:"value"`
	ValueMA   float64 `json:"value_ma"`
	ValuePctB float64 `json:"value_pct_b"`
	Close     float64 `json:"close"`
	CloseMA   float64 `json:"close_ma"`
	ClosePctB float64 `json:"close_pct_b"`
	Diff      float64 `json:"diff"`
}

// ValuationPoint is one row of the %b_DIF indicator: dividend yield %b minus
// P/E %b, both taken on 5-day averages.
type ValuationPoint struct {
	Date          string   `json:"date"`
	PE            float64  `json:"pe"`
	DividendYield float64  `json:"dividend_yield"`
	PEMA5         float64  `json:"pe_ma5"`
	DYMA5         float64  `json:"dy_ma5"`
	PEPctB        float64  `json:"pe_pct_b"`
	DYPctB        float64  `json:"dy_pct_b"`
	Diff          float64  `json:"diff"`
	Close         *float64 `json:"close"`
}
