package display

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/twpbr/internal/storage"
	"github.com/dyike/twpbr/models"
)

func TestIndexNumbersAnchored(t *testing.T) {
	dates := []string{"20251203", "20251128", "20251201", "20251202", "20251127"}
	got := IndexNumbers(dates, "20251201", 949)
	assert.Equal(t, map[string]int{
		"20251127": 947,
		"20251128": 948,
		"20251201": 949,
		"20251202": 950,
		"20251203": 951,
	}, got)
}

func TestIndexNumbersWithoutAnchor(t *testing.T) {
	dates := []string{"20251016", "20251015", "20251017"}
	want := map[string]int{"20251015": 1, "20251016": 2, "20251017": 3}

	assert.Equal(t, want, IndexNumbers(dates, "20251201", 949))
	assert.Equal(t, want, IndexNumbers(dates, "", 949))
	assert.Empty(t, IndexNumbers(nil, "20251201", 949))
}

func TestShowIndex(t *testing.T) {
	var buf bytes.Buffer
	d := NewResultsDisplay(&buf)

	d.ShowIndex(models.PBRCounts{"20251202": 180, "20251201": 176, "20251128": 171}, "20251201", 949)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"tseARR[948,1]=20251128;   tseARR[948,2]=171;",
		"tseARR[949,1]=20251201;   tseARR[949,2]=176;",
		"tseARR[950,1]=20251202;   tseARR[950,2]=180;",
	}, lines)
}

func TestShowIndexUnknownAndFractionalCounts(t *testing.T) {
	var buf bytes.Buffer
	d := NewResultsDisplay(&buf)

	d.ShowIndex(models.PBRCounts{"20250102": 120, "20250103": math.NaN(), "20250106": 130.5}, "", 0)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"tseARR[1,1]=20250102;   tseARR[1,2]=120;",
		"tseARR[2,1]=20250103;   tseARR[2,2]=null;",
		"tseARR[3,1]=20250106;   tseARR[3,2]=130.5;",
	}, lines)
}

func TestShowSummaries(t *testing.T) {
	var buf bytes.Buffer
	d := NewResultsDisplay(&buf)

	points := []models.IndicatorPoint{
		{Date: "20250102", Value: 198, Close: 23000, ValuePctB: 61.2, Diff: 4.5},
		{Date: "20250103", Value: 210, Close: 22900, ValuePctB: 70.1, Diff: -3.25},
	}
	d.ShowIndicatorSummary("^TWII", "Day", points, 1)
	out := buf.String()
	assert.Contains(t, out, "^TWII PB-C Day")
	assert.Contains(t, out, "20250103")
	assert.Contains(t, out, "-3.25")
	assert.NotContains(t, out, "20250102")

	buf.Reset()
	d.ShowValuationSummary("2330", nil, 5)
	assert.Contains(t, buf.String(), "no indicator rows")
}

func TestSaveResultsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", ResultFileName("^TWII", "day")+".json")
	assert.True(t, strings.HasSuffix(path, "TWII_day.json"))

	points := []models.IndicatorPoint{{Date: "20250102", Value: 198, Diff: 4.5}}
	require.NoError(t, SaveResultsToFile(path, "^TWII", "day", points))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		Metadata map[string]string       `json:"metadata"`
		Points   []models.IndicatorPoint `json:"points"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "^TWII", decoded.Metadata["code"])
	assert.Equal(t, points, decoded.Points)
}

func TestShowRuns(t *testing.T) {
	var buf bytes.Buffer
	d := NewResultsDisplay(&buf)

	d.ShowRuns(nil)
	assert.Contains(t, buf.String(), "no runs recorded")

	buf.Reset()
	d.ShowRuns([]storage.Run{{
		ID: "6f1c2a4e-0000-4000-8000-000000000001", Kind: storage.KindWeek, Stock: "2330",
		FirstDate: "20250106", LastDate: "20250331", Points: 12,
		CreatedAt: time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC),
	}})
	out := buf.String()
	assert.Contains(t, out, "6f1c2a4e-0000-4000-8000-000000000001")
	assert.Contains(t, out, "20250106-20250331")
	assert.Contains(t, out, "2025-04-01 09:30")
}

func TestShowPoints(t *testing.T) {
	var buf bytes.Buffer
	d := NewResultsDisplay(&buf)

	closeValue := 1075.0
	d.ShowPoints(storage.Run{ID: "run-1", Kind: storage.KindValuation, Stock: "2330", ImagePath: "results/2330.png"},
		[]storage.Point{
			{Date: "20250210", Close: &closeValue, Value: 27.1, Diff: -35.36},
			{Date: "20250211", Value: 27.4, Diff: 12.5},
		})

	out := buf.String()
	assert.Contains(t, out, "2330 valuation  run-1")
	assert.Contains(t, out, "results/2330.png")
	assert.Contains(t, out, "1075.00")
	assert.Contains(t, out, "20250211")
	assert.Contains(t, out, "-35.36")
}

func TestStatusMessages(t *testing.T) {
	var buf bytes.Buffer

	DisplaySuccess(&buf, "chart written to results/2330_day.png")
	DisplayWarning(&buf, "git sync is disabled")
	DisplayInfo(&buf, "run recorded as run-1")
	DisplayError(&buf, errors.New("http status 503"), "update")

	out := buf.String()
	assert.Contains(t, out, "chart written to results/2330_day.png")
	assert.Contains(t, out, "Warning: git sync is disabled")
	assert.Contains(t, out, "run recorded as run-1")
	assert.Contains(t, out, "Error in update:")
	assert.Contains(t, out, "http status 503")
}
