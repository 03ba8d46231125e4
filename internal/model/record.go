package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IDColumn is the mandatory unique identifier column.
const IDColumn = "id"

// Record is a mapping from field name to scalar value (string, number,
// boolean, or nil). Every persisted record carries a unique integer id.
type Record map[string]interface{}

// ID returns the record's integer id.
// Returns false for a missing, empty, or non-numeric id.
func (r Record) ID() (int64, bool) {
	return CoerceID(r[IDColumn])
}

// SetID sets the record's id field.
func (r Record) SetID(id int64) {
	r[IDColumn] = id
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Get returns the value of a field and whether it is present.
func (r Record) Get(name string) (interface{}, bool) {
	v, ok := r[name]
	return v, ok
}

// CoerceID converts an arbitrary scalar to an integer id.
// Accepts integers, floats with no fractional part, and numeric strings.
func CoerceID(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), val > 0
	case int64:
		return val, val > 0
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) || val != math.Trunc(val) {
			return 0, false
		}
		return int64(val), val > 0
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		// CSV cells round-trip floats as "3" or "3.0"
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), f > 0
	default:
		return 0, false
	}
}

// FormatValue renders a scalar for CSV storage. Nil becomes the empty
// string; floats drop trailing zeros so ids round-trip cleanly.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// CompareValues orders two scalars by their CSV string form. Used for
// tie-break sorting during merge; dates stored as YYYY-MM-DD order
// correctly under string comparison.
func CompareValues(a, b interface{}) int {
	return strings.Compare(FormatValue(a), FormatValue(b))
}
