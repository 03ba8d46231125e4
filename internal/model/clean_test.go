package model

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCleanValue_Money(t *testing.T) {
	t.Run("negative clamps to zero", func(t *testing.T) {
		assert.Equal(t, float64(0), CleanValue("amount", -5.0))
	})

	t.Run("positive passes through", func(t *testing.T) {
		assert.Equal(t, 12.5, CleanValue("amount", 12.5))
	})

	t.Run("string with thousands separator", func(t *testing.T) {
		assert.Equal(t, 1234.5, CleanValue("amount", "1,234.50"))
	})

	t.Run("garbage becomes zero", func(t *testing.T) {
		assert.Equal(t, float64(0), CleanValue("amount", "not a number"))
	})

	t.Run("NaN becomes default", func(t *testing.T) {
		assert.Equal(t, float64(0), CleanValue("amount", math.NaN()))
	})
}

func TestCleanValue_Progress(t *testing.T) {
	assert.Equal(t, float64(100), CleanValue("progress", 150.0))
	assert.Equal(t, float64(0), CleanValue("progress", -10.0))
	assert.Equal(t, 42.0, CleanValue("progress", 42.0))
}

func TestCleanValue_Bool(t *testing.T) {
	for _, truthy := range []string{"true", "1", "yes", "on", "active", "completed", "YES"} {
		assert.Equal(t, true, CleanValue("is_active", truthy), "expected %q to be truthy", truthy)
	}
	for _, falsy := range []string{"false", "0", "no", "off", "anything else"} {
		assert.Equal(t, false, CleanValue("is_active", falsy), "expected %q to be falsy", falsy)
	}
	assert.Equal(t, true, CleanValue("is_completed", 1))
}

func TestCleanValue_Strings(t *testing.T) {
	t.Run("control characters stripped", func(t *testing.T) {
		assert.Equal(t, "hello world", CleanValue("description", "hel\x00lo\x1f world"))
	})

	t.Run("long values truncated", func(t *testing.T) {
		long := strings.Repeat("x", MaxFieldLength+50)
		cleaned := CleanValue("description", long).(string)
		assert.Len(t, cleaned, MaxFieldLength)
	})

	t.Run("truncation counts characters not bytes", func(t *testing.T) {
		long := strings.Repeat("é", MaxFieldLength+5)
		cleaned := CleanValue("description", long).(string)
		assert.Equal(t, MaxFieldLength, utf8.RuneCountInString(cleaned))
		assert.True(t, utf8.ValidString(cleaned))
	})

	t.Run("whitespace trimmed", func(t *testing.T) {
		assert.Equal(t, "note", CleanValue("description", "  note  "))
	})

	t.Run("none and null become empty", func(t *testing.T) {
		assert.Equal(t, "", CleanValue("description", "None"))
		assert.Equal(t, "", CleanValue("description", "null"))
	})
}

func TestCleanValue_Dates(t *testing.T) {
	t.Run("date-only preserved", func(t *testing.T) {
		assert.Equal(t, "2026-08-31", CleanValue("date", "2026-08-31"))
	})

	t.Run("datetime normalized", func(t *testing.T) {
		assert.Equal(t, "2026-08-31 10:30:00", CleanValue("date", "2026-08-31 10:30:00"))
	})
}

func TestCleanRecord_FillsDefaults(t *testing.T) {
	columns := []string{"id", "amount", "progress", "is_active", "description"}
	rec := CleanRecord(Record{"amount": "15"}, columns)

	assert.Equal(t, int64(0), rec["id"])
	assert.Equal(t, float64(15), rec["amount"])
	assert.Equal(t, float64(0), rec["progress"])
	assert.Equal(t, false, rec["is_active"])
	assert.Equal(t, "", rec["description"])
}

func TestCoerceID(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		id    int64
		ok    bool
	}{
		{"int", 3, 3, true},
		{"int64", int64(7), 7, true},
		{"whole float", 4.0, 4, true},
		{"fractional float", 4.5, 0, false},
		{"numeric string", "12", 12, true},
		{"float string", "12.0", 12, true},
		{"zero", 0, 0, false},
		{"negative", -1, 0, false},
		{"empty string", "", 0, false},
		{"garbage", "abc", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := CoerceID(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.id, id)
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "3", FormatValue(int64(3)))
	assert.Equal(t, "3", FormatValue(3.0))
	assert.Equal(t, "3.5", FormatValue(3.5))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "", FormatValue(math.NaN()))
	assert.Equal(t, "", FormatValue(math.Inf(1)))
}
