package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/twpbr/internal/calendar"
)

const (
	actionUpdate    = "Update cache"
	actionShow      = "Show cache"
	actionPlotDay   = "Plot PB-C (day)"
	actionPlotWeek  = "Plot PB-C (week)"
	actionValuation = "Plot %b_DIF valuation"
	actionExit      = "Exit"
)

var stockPattern = regexp.MustCompile(`^\^?[A-Z0-9.]+$`)

func normalizeStock(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// ValidateStockCode accepts TWSE codes such as 2330 or 00878, Yahoo
// symbols such as 2330.TW and indices such as ^TWII.
func ValidateStockCode(val interface{}) error {
	str, ok := val.(string)
	if !ok {
		return fmt.Errorf("stock code must be text")
	}
	str = normalizeStock(str)
	if len(str) == 0 {
		return fmt.Errorf("stock code cannot be empty")
	}
	if len(str) > 12 {
		return fmt.Errorf("stock code too long (max 12 characters)")
	}
	if !stockPattern.MatchString(str) {
		return fmt.Errorf("invalid stock code %q (use digits, letters, dots and a leading ^ only)", str)
	}
	return nil
}

// ValidateMonth accepts a YYYYMM month.
func ValidateMonth(val interface{}) error {
	str, ok := val.(string)
	if !ok {
		return fmt.Errorf("month must be text")
	}
	str = strings.TrimSpace(str)
	if _, err := calendar.MonthRange(str, str); err != nil {
		return fmt.Errorf("invalid month %q, use YYYYMM", str)
	}
	return nil
}

// PromptForStock prompts the user to enter a stock code
func PromptForStock() (string, error) {
	var stock string
	prompt := &survey.Input{
		Message: "Enter the stock code (e.g., 2330, 0050, ^TWII):",
		Help:    "TWSE codes are looked up on Yahoo with the .TW suffix",
	}

	err := survey.AskOne(prompt, &stock, survey.WithValidator(ValidateStockCode))
	if err != nil {
		return "", err
	}

	return normalizeStock(stock), nil
}

// PromptForMonth prompts the user for the first month of a valuation run
func PromptForMonth() (string, error) {
	var month string
	prompt := &survey.Input{
		Message: "Enter the first month (YYYYMM):",
		Default: calendar.Today()[:4] + "01",
	}

	err := survey.AskOne(prompt, &month, survey.WithValidator(ValidateMonth))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(month), nil
}

// PromptForAction asks which workflow to run next
func PromptForAction() (string, error) {
	var selected string
	prompt := &survey.Select{
		Message: "What would you like to do?",
		Options: []string{actionUpdate, actionShow, actionPlotDay, actionPlotWeek, actionValuation, actionExit},
		Default: actionUpdate,
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return selected, nil
}
