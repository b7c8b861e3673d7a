package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxPrice is the exclusive upper bound for a plausible price
const MaxPrice = 1_000_000

var (
	currencyPattern = regexp.MustCompile(`(?i)(US\$|C\$|A\$|\$|€|£|¥|₹|\bUSD\b|\bEUR\b|\bGBP\b|\bJPY\b|\bINR\b|\bCAD\b|\bAUD\b)`)
	numberPattern   = regexp.MustCompile(`\d+(?:[.,]\d+)*(?:[ \x{00A0}\x{202F}]\d{3}(?:[.,]\d+)?)*`)
)

var currencySymbols = map[string]string{
	"usd": "$",
	"us$": "$",
	"$":   "$",
	"eur": "€",
	"€":   "€",
	"gbp": "£",
	"£":   "£",
	"jpy": "¥",
	"¥":   "¥",
	"inr": "₹",
	"₹":   "₹",
	"cad": "C$",
	"c$":  "C$",
	"aud": "A$",
	"a$":  "A$",
}

// NormalizeCurrency maps a currency code or symbol onto its symbol. Unknown
// tokens are returned upper-cased.
func NormalizeCurrency(token string) string {
	t := strings.TrimSpace(token)
	if t == "" {
		return ""
	}
	if sym, ok := currencySymbols[strings.ToLower(t)]; ok {
		return sym
	}
	return strings.ToUpper(t)
}

// ParsePrice finds a price in free text. The number closest to a currency
// token wins. The currency is empty when the text carries none.
func ParsePrice(text string) (float64, string, bool) {
	numbers := numberPattern.FindAllStringIndex(text, -1)
	if len(numbers) == 0 {
		return 0, "", false
	}

	currency := ""
	pick := numbers[0]
	if loc := currencyPattern.FindStringIndex(text); loc != nil {
		currency = NormalizeCurrency(text[loc[0]:loc[1]])
		best := -1
		for _, n := range numbers {
			d := distance(loc, n)
			if best < 0 || d < best {
				best = d
				pick = n
			}
		}
	}

	value, ok := parseNumber(text[pick[0]:pick[1]])
	if !ok || value <= 0 || value >= MaxPrice {
		return 0, "", false
	}
	return value, currency, true
}

func distance(a, b []int) int {
	switch {
	case b[0] >= a[1]:
		return b[0] - a[1]
	case a[0] >= b[1]:
		return a[0] - b[1]
	default:
		return 0
	}
}

// parseNumber resolves thousands and decimal separators. When both '.' and ','
// appear the last one is the decimal separator. A lone separator followed by
// exactly three digits is a thousands separator, otherwise a decimal point.
func parseNumber(s string) (float64, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, s)

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = resolveSingle(s, ",")
	case lastDot >= 0:
		s = resolveSingle(s, ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func resolveSingle(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	i := strings.Index(s, sep)
	if len(s)-i-1 == 3 {
		return strings.ReplaceAll(s, sep, "")
	}
	return strings.Replace(s, sep, ".", 1)
}
