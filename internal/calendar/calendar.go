// Package calendar holds the date helpers shared by the TWSE downloads and the
// indicator series. Dates travel as YYYYMMDD strings, the key format of the cache.
package calendar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout  = "20060102"
	MonthLayout = "200601"

	// WindowDays is how far MonthDates reaches back from the reference date.
	WindowDays = 32
)

var taipei = loadTaipei()

func loadTaipei() *time.Location {
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// Location is the exchange time zone.
func Location() *time.Location { return taipei }

// Today returns the current exchange date as YYYYMMDD.
func Today() string {
	return time.Now().In(taipei).Format(DateLayout)
}

// ParseDate parses a YYYYMMDD key.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), taipei)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYYMMDD: %w", s, err)
	}
	return t, nil
}

// MonthDates returns the weekdays among the WindowDays+1 calendar days ending at
// ref (inclusive), oldest first.
func MonthDates(ref string) ([]string, error) {
	dt, err := ParseDate(ref)
	if err != nil {
		return nil, err
	}

	dates := make([]string, 0, WindowDays+1)
	for i := WindowDays; i >= 0; i-- {
		day := dt.AddDate(0, 0, -i)
		if isWeekday(day) {
			dates = append(dates, day.Format(DateLayout))
		}
	}
	return dates, nil
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// FirstWorkdayEachWeek keeps, for each ISO week present in data, the entry of
// the earliest weekday (Monday first). Keys that do not parse are dropped.
func FirstWorkdayEachWeek[V any](data map[string]V) map[string]V {
	type isoWeek struct{ year, week int }

	first := make(map[isoWeek]time.Time)
	for key := range data {
		d, err := ParseDate(key)
		if err != nil {
			continue
		}
		y, w := d.ISOWeek()
		k := isoWeek{y, w}
		if cur, ok := first[k]; !ok || isoWeekday(d) < isoWeekday(cur) {
			first[k] = d
		}
	}

	result := make(map[string]V, len(first))
	for _, d := range first {
		key := d.Format(DateLayout)
		result[key] = data[key]
	}
	return result
}

// isoWeekday maps Monday..Sunday to 0..6.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// MonthRange lists the months from start to end inclusive as YYYYMM. Both ends
// accept longer date strings; only the first six characters are read.
func MonthRange(start, end string) ([]string, error) {
	s, err := parseMonth(start)
	if err != nil {
		return nil, err
	}
	e, err := parseMonth(end)
	if err != nil {
		return nil, err
	}

	var months []string
	for m := s; !m.After(e); m = m.AddDate(0, 1, 0) {
		months = append(months, m.Format(MonthLayout))
	}
	return months, nil
}

func parseMonth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < 6 {
		return time.Time{}, fmt.Errorf("invalid month %q, want YYYYMM", s)
	}
	t, err := time.ParseInLocation(MonthLayout, s[:6], taipei)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, want YYYYMM: %w", s, err)
	}
	return t, nil
}

// ROCToGregorian converts a Minguo calendar date such as "114年01月02日" or
// "114/01/02" to YYYYMMDD.
func ROCToGregorian(s string) (string, error) {
	r := strings.NewReplacer("年", "/", "月", "/", "日", "")
	parts := strings.Split(strings.TrimSpace(r.Replace(s)), "/")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid ROC date %q", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return "", fmt.Errorf("invalid ROC date %q: %w", s, err)
		}
		nums[i] = n
	}
	if nums[1] < 1 || nums[1] > 12 || nums[2] < 1 || nums[2] > 31 {
		return "", fmt.Errorf("invalid ROC date %q", s)
	}
	return fmt.Sprintf("%04d%02d%02d", nums[0]+1911, nums[1], nums[2]), nil
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Tail keeps the last n entries of m by date. n <= 0 keeps everything.
func Tail[V any](m map[string]V, n int) map[string]V {
	if n <= 0 || n >= len(m) {
		return m
	}
	keys := SortedKeys(m)
	out := make(map[string]V, n)
	for _, k := range keys[len(keys)-n:] {
		out[k] = m[k]
	}
	return out
}
