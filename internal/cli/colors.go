package cli

import "fmt"

// ANSI color codes for consistent styling across all CLI commands
const (
	Reset = "\033[0m"

	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	White  = "\033[37m"
	Gray   = "\033[90m"

	Bold = "\033[1m"
	Dim  = "\033[2m"
)

// Predefined color combinations for consistency
var (
	HeaderStyle = Cyan + Bold

	SuccessStyle = Green + Bold
	ErrorStyle   = Red + Bold
	WarningStyle = Yellow + Bold
	InfoStyle    = Blue + Bold

	LabelStyle = Cyan
	ValueStyle = White + Bold
	DimStyle   = Dim
	CountStyle = Yellow + Bold
	MetaStyle  = Gray
)

func FormatHeader(text string) string {
	return HeaderStyle + text + Reset
}

func FormatValue(text string) string {
	return ValueStyle + text + Reset
}

func FormatCount(count int) string {
	return CountStyle + fmt.Sprintf("%d", count) + Reset
}

func FormatMeta(text string) string {
	return MetaStyle + text + Reset
}

// FormatLabelValue formats a label-value pair
func FormatLabelValue(label, value string) string {
	return LabelStyle + label + Reset + " " + ValueStyle + value + Reset
}

// FormatScore colors a 0-100 match score: green from 70, yellow from 40
func FormatScore(score float64) string {
	style := ErrorStyle
	switch {
	case score >= 70:
		style = SuccessStyle
	case score >= 40:
		style = WarningStyle
	}
	return style + fmt.Sprintf("%.0f", score) + Reset
}

// FormatPrice renders an optional price, "-" when unknown
func FormatPrice(price *float64, currency string) string {
	if price == nil {
		return MetaStyle + "-" + Reset
	}
	if currency == "" {
		return fmt.Sprintf("%.2f", *price)
	}
	return fmt.Sprintf("%.2f %s", *price, currency)
}

// FormatDiff renders a signed price difference
func FormatDiff(diff *float64) string {
	if diff == nil {
		return MetaStyle + "-" + Reset
	}
	switch {
	case *diff > 0:
		return ErrorStyle + fmt.Sprintf("+%.2f", *diff) + Reset
	case *diff < 0:
		return SuccessStyle + fmt.Sprintf("%.2f", *diff) + Reset
	default:
		return "0.00"
	}
}
