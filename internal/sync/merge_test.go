package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tally/internal/model"
)

var mergeKey = model.TableKey{Module: "expenses", File: "expenses.csv"}

func tableWith(columns []string, records ...model.Record) *model.Table {
	tbl := model.NewTable(mergeKey, columns)
	tbl.Records = append(tbl.Records, records...)
	return tbl
}

func TestMerge_LastWriteWinsByDate(t *testing.T) {
	local := tableWith([]string{"id", "amount", "date"},
		model.Record{"id": "1", "amount": "50", "date": "2024-01-01"},
		model.Record{"id": "2", "amount": "10", "date": "2024-01-03"},
	)
	remote := tableWith([]string{"id", "amount", "date"},
		model.Record{"id": "1", "amount": "75", "date": "2024-01-02"},
	)

	merged, resolved := Merge(local, remote)
	require.True(t, resolved)
	require.Len(t, merged.Records, 2)

	idx := merged.FindByID(1)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "75", merged.Records[idx]["amount"], "newer remote version wins for id 1")

	idx = merged.FindByID(2)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "10", merged.Records[idx]["amount"])

	// The winning rows come out in date order, not arrival order.
	assert.Equal(t, []string{"2024-01-02", "2024-01-03"}, recordDates(merged))
}

// recordDates extracts the date column in record order.
func recordDates(tbl *model.Table) []string {
	dates := make([]string, 0, len(tbl.Records))
	for _, rec := range tbl.Records {
		dates = append(dates, model.FormatValue(rec["date"]))
	}
	return dates
}

func TestMerge_OutputStaysSortedAfterDedup(t *testing.T) {
	// A remote row newer than every local row must land at the end of
	// the merged table, not at the slot its id first appeared in.
	local := tableWith([]string{"id", "amount", "date"},
		model.Record{"id": "1", "amount": "50", "date": "2024-01-01"},
		model.Record{"id": "2", "amount": "10", "date": "2024-01-03"},
	)
	remote := tableWith([]string{"id", "amount", "date"},
		model.Record{"id": "1", "amount": "75", "date": "2024-01-05"},
	)

	merged, resolved := Merge(local, remote)
	require.True(t, resolved)
	require.Len(t, merged.Records, 2)

	assert.Equal(t, []string{"2024-01-03", "2024-01-05"}, recordDates(merged))
	assert.Equal(t, "10", merged.Records[0]["amount"])
	assert.Equal(t, "75", merged.Records[1]["amount"])
}

func TestMerge_Deterministic(t *testing.T) {
	local := tableWith([]string{"id", "amount", "date"},
		model.Record{"id": "1", "amount": "1", "date": "2024-02-01"},
		model.Record{"id": "3", "amount": "3", "date": "2024-01-15"},
	)
	remote := tableWith([]string{"id", "amount", "date"},
		model.Record{"id": "2", "amount": "2", "date": "2024-01-20"},
		model.Record{"id": "1", "amount": "9", "date": "2024-01-10"},
	)

	first, resolved := Merge(local, remote)
	require.True(t, resolved)
	second, _ := Merge(local, remote)

	assert.Equal(t, first.Columns, second.Columns)
	assert.Equal(t, first.Records, second.Records)

	// Records come out sorted ascending by date; the stale remote
	// version of id 1 loses to the local one.
	idx := first.FindByID(1)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "1", first.Records[idx]["amount"])
}

func TestMerge_MissingIDColumnFallsBackToRemote(t *testing.T) {
	t.Run("local lacks id", func(t *testing.T) {
		local := tableWith([]string{"amount"}, model.Record{"amount": "5"})
		remote := tableWith([]string{"id", "amount"}, model.Record{"id": "1", "amount": "7"})

		merged, resolved := Merge(local, remote)
		assert.False(t, resolved)
		require.Len(t, merged.Records, 1)
		assert.Equal(t, "7", merged.Records[0]["amount"])
	})

	t.Run("remote lacks id", func(t *testing.T) {
		local := tableWith([]string{"id", "amount"}, model.Record{"id": "1", "amount": "5"})
		remote := tableWith([]string{"amount"}, model.Record{"amount": "7"})

		merged, resolved := Merge(local, remote)
		assert.False(t, resolved)
		assert.Equal(t, []string{"amount"}, merged.Columns)
	})
}

func TestMerge_UnionColumnsLocalFirst(t *testing.T) {
	local := tableWith([]string{"id", "amount"}, model.Record{"id": "1", "amount": "5"})
	remote := tableWith([]string{"id", "merchant"}, model.Record{"id": "2", "merchant": "cafe"})

	merged, resolved := Merge(local, remote)
	require.True(t, resolved)
	assert.Equal(t, []string{"id", "amount", "merchant"}, merged.Columns)
	assert.Len(t, merged.Records, 2)
}

func TestMerge_NoTieBreakColumnKeepsArrivalOrder(t *testing.T) {
	local := tableWith([]string{"id", "name"}, model.Record{"id": "1", "name": "local"})
	remote := tableWith([]string{"id", "name"}, model.Record{"id": "1", "name": "remote"})

	merged, resolved := Merge(local, remote)
	require.True(t, resolved)
	require.Len(t, merged.Records, 1)
	// Without a timestamp column the remote copy, appended second, wins.
	assert.Equal(t, "remote", merged.Records[0]["name"])
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	local := tableWith([]string{"id", "amount", "date"},
		model.Record{"id": "1", "amount": "50", "date": "2024-01-01"})
	remote := tableWith([]string{"id", "amount", "date"},
		model.Record{"id": "1", "amount": "75", "date": "2024-01-02"})

	_, _ = Merge(local, remote)

	assert.Equal(t, "50", local.Records[0]["amount"])
	assert.Equal(t, "75", remote.Records[0]["amount"])
}
