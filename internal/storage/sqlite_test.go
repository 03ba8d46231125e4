package storage

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tally/internal/model"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "tally-cache-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	cache, err := OpenCache(tmpDir)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func testTable() *model.Table {
	tbl := model.NewTable(model.TableKey{Module: "expenses", File: "expenses.csv"},
		[]string{"id", "amount", "category"})
	tbl.Records = append(tbl.Records,
		model.Record{"id": int64(1), "amount": 12.5, "category": "food"},
		model.Record{"id": int64(2), "amount": 30.0, "category": "travel"},
	)
	return tbl
}

func TestCache_RebuildAndCount(t *testing.T) {
	cache := newTestCache(t)
	tbl := testTable()

	t.Run("count before rebuild", func(t *testing.T) {
		count, err := cache.Count(tbl.Key)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("rebuild populates", func(t *testing.T) {
		require.NoError(t, cache.Rebuild(tbl))

		count, err := cache.Count(tbl.Key)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("rebuild replaces", func(t *testing.T) {
		tbl.Records = tbl.Records[:1]
		require.NoError(t, cache.Rebuild(tbl))

		count, err := cache.Count(tbl.Key)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestCache_Query(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, cache.Rebuild(testTable()))

	t.Run("select rows", func(t *testing.T) {
		rows, columns, err := cache.Query(`SELECT category, amount FROM "expenses_expenses" ORDER BY id`)
		require.NoError(t, err)

		assert.Equal(t, []string{"category", "amount"}, columns)
		require.Len(t, rows, 2)
		assert.Equal(t, "food", rows[0]["category"])
		assert.Equal(t, "12.5", rows[0]["amount"])
	})

	t.Run("only selects allowed", func(t *testing.T) {
		_, _, err := cache.Query(`DELETE FROM "expenses_expenses"`)
		assert.Error(t, err)
	})
}

func TestCacheTableName(t *testing.T) {
	assert.Equal(t, "expenses_expenses",
		cacheTableName(model.TableKey{Module: "expenses", File: "expenses.csv"}))
	assert.Equal(t, "my_mod_daily_log",
		cacheTableName(model.TableKey{Module: "my-mod", File: "daily.log.csv"}))
}
