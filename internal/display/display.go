package display

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/twpbr/internal/storage"
	"github.com/dyike/twpbr/models"
)

var (
	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#3B82F6")).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(0, 2)

	sectionStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED"))

	positiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// ResultsDisplay prints cache and indicator results for the operator
type ResultsDisplay struct {
	w io.Writer
}

// NewResultsDisplay creates a display writing to w, or stdout when w is nil
func NewResultsDisplay(w io.Writer) *ResultsDisplay {
	if w == nil {
		w = os.Stdout
	}
	return &ResultsDisplay{w: w}
}

// IndexNumbers assigns a running number to every date. When anchorDate is one
// of dates it gets anchorIndex and the others count outward from it;
// otherwise numbering starts at 1.
func IndexNumbers(dates []string, anchorDate string, anchorIndex int) map[string]int {
	sorted := append([]string(nil), dates...)
	sort.Strings(sorted)

	base, pos := 1, 0
	if i := sort.SearchStrings(sorted, anchorDate); anchorDate != "" && i < len(sorted) && sorted[i] == anchorDate {
		base, pos = anchorIndex, i
	}

	numbers := make(map[string]int, len(sorted))
	for i, d := range sorted {
		numbers[d] = base + i - pos
	}
	return numbers
}

// ShowIndex prints one tseARR line per date in ascending order.
func (d *ResultsDisplay) ShowIndex(values models.PBRCounts, anchorDate string, anchorIndex int) {
	dates := make([]string, 0, len(values))
	for k := range values {
		dates = append(dates, k)
	}
	sort.Strings(dates)
	numbers := IndexNumbers(dates, anchorDate, anchorIndex)

	for _, date := range dates {
		n := numbers[date]
		fmt.Fprintf(d.w, "tseARR[%d,1]=%s;   tseARR[%d,2]=%s;\n", n, date, n, formatCount(values[date]))
	}
}

// formatCount prints whole counts without a decimal point and a null entry as null.
func formatCount(v float64) string {
	if math.IsNaN(v) {
		return "null"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ShowHeader prints a boxed title line
func (d *ResultsDisplay) ShowHeader(title string) {
	fmt.Fprintln(d.w)
	fmt.Fprintln(d.w, headerStyle.Render(title))
}

// ShowCacheSize prints how many dates the cache holds
func (d *ResultsDisplay) ShowCacheSize(n int) {
	fmt.Fprintf(d.w, "現有 Cache 長度: %d\n", n)
}

// ShowIndicatorSummary prints the latest rows of a PB-C indicator series
func (d *ResultsDisplay) ShowIndicatorSummary(code, text string, points []models.IndicatorPoint, rows int) {
	fmt.Fprintln(d.w, sectionStyle.Render(fmt.Sprintf("%s PB-C %s", code, text)))
	if len(points) == 0 {
		fmt.Fprintln(d.w, mutedStyle.Render("  no indicator rows"))
		return
	}

	start := 0
	if rows > 0 && len(points) > rows {
		start = len(points) - rows
	}
	fmt.Fprintf(d.w, "  %-10s %10s %10s %10s %10s\n", "date", "value", "close", "value%b", "diff")
	for _, p := range points[start:] {
		fmt.Fprintf(d.w, "  %-10s %10.0f %10.2f %10.2f %s\n",
			p.Date, p.Value, p.Close, p.ValuePctB, colorize(p.Diff))
	}
}

// ShowValuationSummary prints the latest rows of a %b_DIF series
func (d *ResultsDisplay) ShowValuationSummary(code string, points []models.ValuationPoint, rows int) {
	fmt.Fprintln(d.w, sectionStyle.Render(fmt.Sprintf("%s %%b_DIF", code)))
	if len(points) == 0 {
		fmt.Fprintln(d.w, mutedStyle.Render("  no indicator rows"))
		return
	}

	start := 0
	if rows > 0 && len(points) > rows {
		start = len(points) - rows
	}
	fmt.Fprintf(d.w, "  %-10s %8s %8s %8s %8s %10s\n", "date", "PE", "DY", "PE%b", "DY%b", "diff")
	for _, p := range points[start:] {
		fmt.Fprintf(d.w, "  %-10s %8.2f %8.2f %8.2f %8.2f %s\n",
			p.Date, p.PE, p.DividendYield, p.PEPctB, p.DYPctB, colorize(p.Diff))
	}
}

// ShowRuns lists recorded indicator runs, newest first
func (d *ResultsDisplay) ShowRuns(runs []storage.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(d.w, mutedStyle.Render("no runs recorded"))
		return
	}
	fmt.Fprintf(d.w, "%-36s  %-9s %-7s %-17s %6s  %s\n", "id", "kind", "stock", "range", "points", "created")
	for _, r := range runs {
		fmt.Fprintf(d.w, "%-36s  %-9s %-7s %-17s %6d  %s\n",
			r.ID, r.Kind, r.Stock, r.FirstDate+"-"+r.LastDate, r.Points, r.CreatedAt.Format("2006-01-02 15:04"))
	}
}

// ShowPoints prints the stored rows of one run
func (d *ResultsDisplay) ShowPoints(run storage.Run, points []storage.Point) {
	fmt.Fprintln(d.w, sectionStyle.Render(fmt.Sprintf("%s %s  %s", run.Stock, run.Kind, run.ID)))
	if run.ImagePath != "" {
		fmt.Fprintln(d.w, mutedStyle.Render("  chart: "+run.ImagePath))
	}
	fmt.Fprintf(d.w, "  %-10s %10s %10s %10s\n", "date", "close", "value", "diff")
	for _, p := range points {
		closeText := fmt.Sprintf("%10s", "-")
		if p.Close != nil {
			closeText = fmt.Sprintf("%10.2f", *p.Close)
		}
		fmt.Fprintf(d.w, "  %-10s %s %10.2f %s\n", p.Date, closeText, p.Value, colorize(p.Diff))
	}
}

func colorize(v float64) string {
	s := fmt.Sprintf("%10.2f", v)
	switch {
	case math.IsNaN(v):
		return mutedStyle.Render(s)
	case v >= 0:
		return positiveStyle.Render(s)
	default:
		return negativeStyle.Render(s)
	}
}

// DisplayError shows formatted error messages
func DisplayError(w io.Writer, err error, context string) {
	fmt.Fprintln(w, negativeStyle.Render(fmt.Sprintf("❌ Error in %s:", context)))
	fmt.Fprintf(w, "   %v\n", err)
}

// DisplayWarning shows formatted warning messages
func DisplayWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "⚠️  Warning: %s\n", message)
}

// DisplaySuccess shows formatted success messages
func DisplaySuccess(w io.Writer, message string) {
	fmt.Fprintln(w, positiveStyle.Render("✅ "+message))
}

// DisplayInfo shows formatted info messages
func DisplayInfo(w io.Writer, message string) {
	fmt.Fprintln(w, mutedStyle.Render("ℹ️  "+message))
}

// SaveResultsToFile writes an indicator series with its metadata as JSON
func SaveResultsToFile(path, code, kind string, points any) error {
	result := map[string]any{
		"metadata": map[string]string{
			"code":         code,
			"kind":         kind,
			"generated_at": time.Now().Format(time.RFC3339),
		},
		"points": points,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ResultFileName builds the base name shared by a run's chart and JSON export
func ResultFileName(code, kind string) string {
	r := strings.NewReplacer("^", "", "/", "_", " ", "_", "%", "pct")
	return fmt.Sprintf("%s_%s", r.Replace(code), r.Replace(kind))
}
