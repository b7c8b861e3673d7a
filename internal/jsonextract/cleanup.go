package jsonextract

import (
	"regexp"
	"strings"
)

var (
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	bareKeyRegex       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_\-]*)(\s*:)`)
	pythonLiteralRegex = regexp.MustCompile(`\b(True|False|None)\b`)
)

// cleanup repairs the mistakes LLMs commonly make when writing JSON
func cleanup(s string) string {
	s = strings.TrimSpace(s)
	s = unescapeQuoted(s)
	s = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'").Replace(s)
	s = convertSingleQuotes(s)
	return mapOutsideStrings(s, func(seg string) string {
		seg = trailingCommaRegex.ReplaceAllString(seg, "$1")
		seg = bareKeyRegex.ReplaceAllString(seg, `$1"$2"$3`)
		return pythonLiteralRegex.ReplaceAllStringFunc(seg, func(m string) string {
			switch m {
			case "True":
				return "true"
			case "False":
				return "false"
			default:
				return "null"
			}
		})
	})
}

// unescapeQuoted undoes one level of escaping when the document was emitted
// as an escaped string literal, i.e. every double quote is backslashed.
func unescapeQuoted(s string) string {
	escapedQuotes := strings.Count(s, `\"`)
	if escapedQuotes == 0 || escapedQuotes != strings.Count(s, `"`) {
		return s
	}
	return strings.NewReplacer(`\"`, `"`, `\n`, "\n", `\t`, "\t", `\\`, `\`).Replace(s)
}

// convertSingleQuotes rewrites single-quoted strings as double-quoted ones.
// Apostrophes inside double-quoted strings are left alone.
func convertSingleQuotes(s string) string {
	if !strings.Contains(s, "'") {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))

	const (
		outside = iota
		inDouble
		inSingle
	)
	state := outside
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch state {
		case outside:
			switch c {
			case '"':
				state = inDouble
				sb.WriteByte(c)
			case '\'':
				state = inSingle
				sb.WriteByte('"')
			default:
				sb.WriteByte(c)
			}
		case inDouble:
			sb.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				state = outside
			}
		case inSingle:
			if escaped {
				escaped = false
				sb.WriteByte(c)
				continue
			}
			switch c {
			case '\\':
				// \' is not a JSON escape
				if i+1 < len(s) && s[i+1] == '\'' {
					sb.WriteByte('\'')
					i++
					continue
				}
				escaped = true
				sb.WriteByte(c)
			case '"':
				sb.WriteString(`\"`)
			case '\'':
				// an apostrophe between letters is part of a word
				if i+1 < len(s) && isWordByte(s[i+1]) && i > 0 && isWordByte(s[i-1]) {
					sb.WriteByte(c)
					continue
				}
				state = outside
				sb.WriteByte('"')
			default:
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// mapOutsideStrings applies fn to every segment of s that is not inside a
// double-quoted string.
func mapOutsideStrings(s string, fn func(string) string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	segStart := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
				sb.WriteString(s[segStart : i+1])
				segStart = i + 1
			}
			continue
		}
		if c == '"' {
			sb.WriteString(fn(s[segStart:i]))
			segStart = i
			inString = true
		}
	}

	if inString {
		sb.WriteString(s[segStart:])
	} else {
		sb.WriteString(fn(s[segStart:]))
	}
	return sb.String()
}
