package competitor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/AI2HU/compscout/internal/extractor"
)

var leadingNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// textField returns a trimmed string. Numbers and booleans are formatted,
// anything else is empty.
func textField(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// numberField accepts a JSON number or a string holding one, such as "88",
// "88%" or "88/100".
func numberField(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		m := leadingNumber.FindString(strings.ReplaceAll(t, ",", ""))
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(m, 64)
		return f, err == nil
	}
	return 0, false
}

// priceField accepts a positive number or a price string like "$6.50". The
// currency is empty unless the string carries one.
func priceField(v interface{}) (float64, string, bool) {
	switch t := v.(type) {
	case float64:
		if t > 0 && t < extractor.MaxPrice {
			return t, "", true
		}
	case string:
		return extractor.ParsePrice(t)
	}
	return 0, "", false
}

// textList accepts an array of scalars or a single string
func textList(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := textField(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return nil
}

// objectList accepts an array of objects or a single object. Non-object
// elements are dropped.
func objectList(v interface{}) []map[string]interface{} {
	switch t := v.(type) {
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(t))
		for _, item := range t {
			if obj, ok := item.(map[string]interface{}); ok {
				out = append(out, obj)
			}
		}
		return out
	case map[string]interface{}:
		return []map[string]interface{}{t}
	}
	return nil
}
