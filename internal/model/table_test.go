package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateModuleName(t *testing.T) {
	valid := []string{"expenses", "my-module", "my_module", "a", "Module2"}
	for _, name := range valid {
		assert.NoError(t, ValidateModuleName(name), "expected %q to be valid", name)
	}

	invalid := []string{"", "2fast", "-dash", "has space", "dot.name"}
	for _, name := range invalid {
		assert.Error(t, ValidateModuleName(name), "expected %q to be invalid", name)
	}
}

func TestTable_NextID(t *testing.T) {
	key := TableKey{Module: "expenses", File: "expenses.csv"}

	t.Run("empty table starts at one", func(t *testing.T) {
		tbl := NewTable(key, []string{"id"})
		assert.Equal(t, int64(1), tbl.NextID())
	})

	t.Run("max plus one", func(t *testing.T) {
		tbl := NewTable(key, []string{"id"})
		tbl.Records = append(tbl.Records, Record{"id": int64(4)}, Record{"id": int64(2)})
		assert.Equal(t, int64(5), tbl.NextID())
	})

	t.Run("invalid ids ignored", func(t *testing.T) {
		tbl := NewTable(key, []string{"id"})
		tbl.Records = append(tbl.Records, Record{"id": "garbage"}, Record{"id": int64(3)})
		assert.Equal(t, int64(4), tbl.NextID())
	})
}

func TestTable_FindByID(t *testing.T) {
	tbl := NewTable(TableKey{Module: "m", File: "t.csv"}, []string{"id"})
	tbl.Records = append(tbl.Records, Record{"id": "1"}, Record{"id": int64(2)})

	assert.Equal(t, 0, tbl.FindByID(1))
	assert.Equal(t, 1, tbl.FindByID(2))
	assert.Equal(t, -1, tbl.FindByID(9))
}

func TestTable_AddColumn(t *testing.T) {
	tbl := NewTable(TableKey{Module: "m", File: "t.csv"}, []string{"id", "name"})

	tbl.AddColumn("name")
	tbl.AddColumn("amount")

	assert.Equal(t, []string{"id", "name", "amount"}, tbl.Columns)
}

func TestTableKey_String(t *testing.T) {
	key := TableKey{Module: "expenses", File: "expenses.csv"}
	assert.Equal(t, "expenses/expenses.csv", key.String())
}
