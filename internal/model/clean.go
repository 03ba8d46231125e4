package model

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxFieldLength bounds stored string fields to keep table files small.
const MaxFieldLength = 1000

// TimestampFormat is the storage form for timestamp columns.
const TimestampFormat = "2006-01-02 15:04:05"

// Column classification by name. Records are schemaless maps, so the
// cleaner decides per-field treatment from the column name alone.
var (
	moneyColumns = map[string]bool{
		"amount": true, "earned": true, "goal": true, "budget": true,
		"price": true, "extra": true,
	}
	countColumns = map[string]bool{
		"target_count": true, "completed_count": true, "quantity": true,
	}
	percentColumns = map[string]bool{
		"progress": true,
	}
	boolColumns = map[string]bool{
		"is_active": true, "is_completed": true, "is_holiday": true,
		"is_recurring": true,
	}
	dateColumns = map[string]bool{
		"date": true, "created_at": true, "updated_at": true,
		"deadline": true, "due_date": true,
	}

	truthyStrings = map[string]bool{
		"true": true, "1": true, "yes": true, "on": true,
		"active": true, "completed": true,
	}

	controlCharRegex = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
)

// IsDateColumn reports whether a column holds timestamps.
func IsDateColumn(name string) bool {
	return dateColumns[name]
}

// CleanRecord sanitizes every field of a record in place on a copy:
// monetary fields clamp to non-negative, percentages to [0,100],
// booleans accept common truthy strings, strings lose control
// characters and are truncated. Missing canonical columns are filled
// with type-appropriate defaults.
func CleanRecord(rec Record, columns []string) Record {
	cleaned := make(Record, len(rec))
	for key, value := range rec {
		cleaned[key] = CleanValue(key, value)
	}
	for _, col := range columns {
		if _, ok := cleaned[col]; !ok {
			cleaned[col] = DefaultValue(col)
		}
	}
	return cleaned
}

// CleanValue sanitizes a single field by column name.
func CleanValue(column string, value interface{}) interface{} {
	if isEmptyValue(value) {
		return DefaultValue(column)
	}

	switch {
	case column == IDColumn:
		id, ok := CoerceID(value)
		if !ok {
			return int64(0)
		}
		return id
	case moneyColumns[column]:
		return math.Max(0, coerceFloat(value))
	case percentColumns[column]:
		return math.Min(100, math.Max(0, coerceFloat(value)))
	case countColumns[column]:
		return int64(math.Max(0, math.Trunc(coerceFloat(value))))
	case boolColumns[column]:
		return coerceBool(value)
	case dateColumns[column]:
		return cleanDate(value)
	default:
		return cleanString(value)
	}
}

// DefaultValue returns the fill value for a missing field.
func DefaultValue(column string) interface{} {
	switch {
	case column == IDColumn, countColumns[column]:
		return int64(0)
	case moneyColumns[column], percentColumns[column]:
		return float64(0)
	case boolColumns[column]:
		return false
	case dateColumns[column]:
		return time.Now().Format(TimestampFormat)
	default:
		return ""
	}
}

func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		return s == "" || s == "none" || s == "null" || s == "nan"
	case float64:
		return math.IsNaN(val)
	default:
		return false
	}
}

func coerceFloat(v interface{}) float64 {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0
		}
		return val
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(val), ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

func coerceBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return truthyStrings[strings.ToLower(strings.TrimSpace(val))]
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0 && !math.IsNaN(val)
	default:
		return false
	}
}

// dateParseFormats are tried in order when normalizing date input.
var dateParseFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"01/02/2006",
}

func cleanDate(v interface{}) string {
	switch val := v.(type) {
	case time.Time:
		return val.Format(TimestampFormat)
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range dateParseFormats {
			if t, err := time.Parse(layout, s); err == nil {
				if layout == "2006-01-02" {
					// Preserve date-only values as dates.
					return t.Format("2006-01-02")
				}
				return t.Format(TimestampFormat)
			}
		}
		return time.Now().Format(TimestampFormat)
	default:
		return time.Now().Format(TimestampFormat)
	}
}

func cleanString(v interface{}) string {
	s := strings.TrimSpace(FormatValue(v))
	s = controlCharRegex.ReplaceAllString(s, "")
	// MaxFieldLength counts characters, so truncate on a rune boundary.
	if utf8.RuneCountInString(s) > MaxFieldLength {
		s = string([]rune(s)[:MaxFieldLength])
	}
	return s
}
