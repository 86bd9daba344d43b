package database

import (
	"database/sql/driver"
	"math"
	"strconv"
	"strings"
	"time"
)

// timestampFormat is how time values read from the engine are rendered as
// text. It matches the first layout go-sqlite3 writes.
const timestampFormat = "2006-01-02 15:04:05.999999999-07:00"

// The as* helpers coerce an engine column value the way the engine's own
// column accessors do: NULL reads as the zero value, text is parsed for a
// leading number, and reals truncate toward zero when read as integers.

func asText(v driver.Value) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatReal(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Time:
		return v.Format(timestampFormat)
	}
	return ""
}

func asInt64(v driver.Value) int64 {
	switch v := v.(type) {
	case int64:
		return v
	case float64:
		return realToInt(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		return parseInt(v)
	case []byte:
		return parseInt(string(v))
	case time.Time:
		return v.Unix()
	}
	return 0
}

func asFloat64(v driver.Value) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		return parseReal(v)
	case []byte:
		return parseReal(string(v))
	case time.Time:
		return float64(v.UnixNano()) / 1e9
	}
	return 0
}

func asBlob(v driver.Value) []byte {
	switch v := v.(type) {
	case nil:
		return nil
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	return []byte(asText(v))
}

// formatReal renders a real with 15 significant digits and always keeps a
// fractional part, so 1 reads back as "1.0".
func formatReal(f float64) string {
	if math.IsInf(f, 1) {
		return "Inf"
	}
	if math.IsInf(f, -1) {
		return "-Inf"
	}
	s := strconv.FormatFloat(f, 'g', 15, 64)
	if !strings.ContainsAny(s, ".eN") {
		s += ".0"
	}
	return s
}

func realToInt(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// numericPrefix returns the longest prefix of s, after leading spaces, that
// looks like a number.
func numericPrefix(s string) string {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := false
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
		digits = true
	}
	if end < len(s) && s[end] == '.' {
		end++
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
			digits = true
		}
	}
	if !digits {
		return ""
	}
	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		exp := end + 1
		if exp < len(s) && (s[exp] == '+' || s[exp] == '-') {
			exp++
		}
		if exp < len(s) && s[exp] >= '0' && s[exp] <= '9' {
			for exp < len(s) && s[exp] >= '0' && s[exp] <= '9' {
				exp++
			}
			end = exp
		}
	}
	return s[:end]
}

func parseInt(s string) int64 {
	prefix := numericPrefix(s)
	if prefix == "" {
		return 0
	}
	if i, err := strconv.ParseInt(prefix, 10, 64); err == nil {
		return i
	}
	f, _ := strconv.ParseFloat(prefix, 64)
	return realToInt(f)
}

func parseReal(s string) float64 {
	prefix := numericPrefix(s)
	if prefix == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(prefix, 64)
	return f
}
