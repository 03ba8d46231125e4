package remote

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/user/tally/internal/model"
)

// Payload is the wire form of one table.
type Payload struct {
	Records  []map[string]interface{} `json:"records"`
	Columns  []string                 `json:"columns"`
	Metadata Metadata                 `json:"metadata"`
}

// Metadata describes an uploaded payload.
type Metadata struct {
	RowCount    int    `json:"row_count"`
	ColumnCount int    `json:"column_count"`
	UploadedAt  string `json:"uploaded_at"`
	Empty       bool   `json:"empty,omitempty"`
}

// NewPayload builds a wire payload from a table. Non-finite numbers
// are converted to nil so the serializer never emits a non-finite
// literal; a zero-row table carries the empty marker.
func NewPayload(tbl *model.Table, now time.Time) *Payload {
	p := &Payload{
		Records: make([]map[string]interface{}, 0, len(tbl.Records)),
		Columns: append([]string(nil), tbl.Columns...),
		Metadata: Metadata{
			RowCount:    len(tbl.Records),
			ColumnCount: len(tbl.Columns),
			UploadedAt:  now.Format(time.RFC3339),
		},
	}

	if tbl.Empty() {
		p.Columns = []string{}
		p.Metadata.ColumnCount = 0
		p.Metadata.Empty = true
		return p
	}

	for _, rec := range tbl.Records {
		row := make(map[string]interface{}, len(tbl.Columns))
		for _, col := range tbl.Columns {
			row[col] = sanitizeValue(rec[col])
		}
		p.Records = append(p.Records, row)
	}
	return p
}

// Table converts a downloaded payload back into a table.
func (p *Payload) Table(key model.TableKey) *model.Table {
	tbl := model.NewTable(key, p.Columns)
	for _, row := range p.Records {
		rec := make(model.Record, len(row))
		for k, v := range row {
			rec[k] = v
		}
		tbl.Records = append(tbl.Records, rec)
	}
	return tbl
}

// IsEmpty reports whether the payload carries no rows.
func (p *Payload) IsEmpty() bool {
	return p == nil || p.Metadata.Empty || len(p.Records) == 0
}

// Encode serializes the payload to JSON. If marshalling fails, every
// record value is stringified and the encode retried once before
// giving up with model.ErrNotSerializable.
func (p *Payload) Encode() ([]byte, error) {
	data, err := json.Marshal(p)
	if err == nil {
		return data, nil
	}

	fallback := &Payload{
		Records:  make([]map[string]interface{}, 0, len(p.Records)),
		Columns:  p.Columns,
		Metadata: p.Metadata,
	}
	for _, row := range p.Records {
		safe := make(map[string]interface{}, len(row))
		for k, v := range row {
			safe[k] = model.FormatValue(v)
		}
		fallback.Records = append(fallback.Records, safe)
	}

	data, err = json.Marshal(fallback)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrNotSerializable, err)
	}
	return data, nil
}

// Decode parses a JSON wire payload.
func Decode(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return &p, nil
}

// sanitizeValue maps values the wire format cannot represent to nil.
func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case nil, bool, string, int, int64:
		return val
	default:
		return model.FormatValue(val)
	}
}
