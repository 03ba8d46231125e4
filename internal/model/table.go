package model

import (
	"fmt"
	"regexp"
)

// Module name validation:
// - Must start with a letter
// - Can contain letters, numbers, hyphens, underscores
// - Max 64 characters
var moduleNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

// TableKey identifies one table: a (module, filename) pair such as
// ("expenses", "expenses.csv").
type TableKey struct {
	Module string
	File   string
}

// String returns the canonical "<module>/<filename>" form used as the
// sync metadata key.
func (k TableKey) String() string {
	return k.Module + "/" + k.File
}

// ValidateModuleName checks if a module name is valid.
// Returns nil if valid, or an error with details.
func ValidateModuleName(name string) error {
	if name == "" {
		return fmt.Errorf("module name cannot be empty")
	}

	if !moduleNameRegex.MatchString(name) {
		return fmt.Errorf("module name must start with a letter and contain only letters, numbers, hyphens, and underscores")
	}

	return nil
}

// Table is a named, ordered sequence of records sharing a canonical
// column set.
type Table struct {
	Key     TableKey
	Columns []string
	Records []Record
}

// NewTable creates an empty table with the given canonical columns.
func NewTable(key TableKey, columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Key: key, Columns: cols}
}

// HasColumn returns true if the table's column set contains name.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends a column if it is not already present.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// Empty returns true if the table has no records.
func (t *Table) Empty() bool {
	return len(t.Records) == 0
}

// NextID returns the id to assign to a new record: max(existing)+1,
// or 1 when the table is empty or holds no valid ids.
func (t *Table) NextID() int64 {
	var max int64
	for _, rec := range t.Records {
		if id, ok := rec.ID(); ok && id > max {
			max = id
		}
	}
	return max + 1
}

// FindByID returns the index of the record with the given id, or -1.
func (t *Table) FindByID(id int64) int {
	for i, rec := range t.Records {
		if rid, ok := rec.ID(); ok && rid == id {
			return i
		}
	}
	return -1
}
