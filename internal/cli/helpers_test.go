package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tally/internal/model"
)

func TestParseTableKey(t *testing.T) {
	t.Run("extension added", func(t *testing.T) {
		key, err := parseTableKey("expenses", "expenses")
		require.NoError(t, err)
		assert.Equal(t, model.TableKey{Module: "expenses", File: "expenses.csv"}, key)
	})

	t.Run("extension kept", func(t *testing.T) {
		key, err := parseTableKey("expenses", "daily.csv")
		require.NoError(t, err)
		assert.Equal(t, "daily.csv", key.File)
	})

	t.Run("invalid module", func(t *testing.T) {
		_, err := parseTableKey("2bad", "t")
		assert.Error(t, err)
	})

	t.Run("empty table", func(t *testing.T) {
		_, err := parseTableKey("expenses", "  ")
		assert.Error(t, err)
	})
}

func TestParseSetFlags(t *testing.T) {
	t.Run("valid flags", func(t *testing.T) {
		rec, err := parseSetFlags([]string{"amount=12.50", "category= food "})
		require.NoError(t, err)
		assert.Equal(t, "12.50", rec["amount"])
		assert.Equal(t, "food", rec["category"])
	})

	t.Run("missing equals", func(t *testing.T) {
		_, err := parseSetFlags([]string{"amount"})
		assert.Error(t, err)
	})

	t.Run("empty field name", func(t *testing.T) {
		_, err := parseSetFlags([]string{"=5"})
		assert.Error(t, err)
	})
}

func TestAddAndListCommands(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tally-cli-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	// Keep command failures from killing the test process.
	exitCalled := 0
	ExitFunc = func(code int) { exitCalled++ }
	defer func() { ExitFunc = os.Exit }()

	t.Run("add record", func(t *testing.T) {
		rootCmd.SetArgs([]string{"--data-dir", tmpDir, "add", "expenses", "expenses",
			"--set", "amount=12.50", "--set", "category=food"})
		require.NoError(t, rootCmd.Execute())
		assert.Zero(t, exitCalled)
	})

	t.Run("add requires a field", func(t *testing.T) {
		addSetFlags = nil
		rootCmd.SetArgs([]string{"--data-dir", tmpDir, "add", "expenses", "expenses"})
		require.NoError(t, rootCmd.Execute())
		assert.Equal(t, 1, exitCalled)
	})

	t.Run("list shows the record", func(t *testing.T) {
		rootCmd.SetArgs([]string{"--data-dir", tmpDir, "list", "expenses", "expenses"})
		require.NoError(t, rootCmd.Execute())
	})
}
