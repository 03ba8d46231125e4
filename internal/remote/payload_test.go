package remote

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tally/internal/model"
)

var payloadKey = model.TableKey{Module: "expenses", File: "expenses.csv"}

func TestNewPayload_SanitizesNonFiniteNumbers(t *testing.T) {
	tbl := model.NewTable(payloadKey, []string{"id", "amount", "extra"})
	tbl.Records = append(tbl.Records, model.Record{
		"id":     int64(1),
		"amount": math.NaN(),
		"extra":  math.Inf(1),
	})

	payload := NewPayload(tbl, time.Now())
	require.Len(t, payload.Records, 1)
	assert.Nil(t, payload.Records[0]["amount"])
	assert.Nil(t, payload.Records[0]["extra"])

	// The sanitized payload serializes cleanly.
	data, err := payload.Encode()
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestNewPayload_EmptyTableCarriesMarker(t *testing.T) {
	payload := NewPayload(model.NewTable(payloadKey, []string{"id", "amount"}), time.Now())

	assert.True(t, payload.Metadata.Empty)
	assert.Equal(t, 0, payload.Metadata.RowCount)
	assert.Empty(t, payload.Columns)
	assert.True(t, payload.IsEmpty())
}

func TestPayload_Metadata(t *testing.T) {
	tbl := model.NewTable(payloadKey, []string{"id", "amount"})
	tbl.Records = append(tbl.Records,
		model.Record{"id": int64(1), "amount": 5.0},
		model.Record{"id": int64(2), "amount": 7.0},
	)

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	payload := NewPayload(tbl, now)

	assert.Equal(t, 2, payload.Metadata.RowCount)
	assert.Equal(t, 2, payload.Metadata.ColumnCount)
	assert.Equal(t, "2026-08-31T12:00:00Z", payload.Metadata.UploadedAt)
	assert.False(t, payload.Metadata.Empty)
}

func TestPayload_EncodeDecodeTableRoundTrip(t *testing.T) {
	tbl := model.NewTable(payloadKey, []string{"id", "amount", "category"})
	tbl.Records = append(tbl.Records,
		model.Record{"id": int64(1), "amount": 12.5, "category": "food"})

	data, err := NewPayload(tbl, time.Now()).Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	back := decoded.Table(payloadKey)
	assert.Equal(t, tbl.Columns, back.Columns)
	require.Len(t, back.Records, 1)
	assert.Equal(t, "food", back.Records[0]["category"])

	id, ok := back.Records[0].ID()
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestPayload_IsEmpty(t *testing.T) {
	var nilPayload *Payload
	assert.True(t, nilPayload.IsEmpty())
	assert.True(t, (&Payload{}).IsEmpty())
	assert.False(t, (&Payload{Records: []map[string]interface{}{{"id": 1}}}).IsEmpty())
}
