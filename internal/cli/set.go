package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/user/tally/internal/model"
)

var setFlags []string

var setCmd = &cobra.Command{
	Use:   "set <module> <table> <id>",
	Short: "Update fields of an existing record",
	Long: `Update one or more fields of the record with the given id.
Untouched fields keep their values; updated_at is refreshed when the
table carries that column. The id itself cannot be changed.

Examples:
  tally set expenses expenses 3 --set amount=20
  tally set habits habits 1 --set is_active=no --set name="evening walk"`,
	Args: cobra.ExactArgs(3),
	RunE: runSet,
}

func init() {
	setCmd.Flags().StringArrayVar(&setFlags, "set", nil, "Set field value (can be repeated): --set Field=Value")
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	key, err := parseTableKey(args[0], args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		Exit(2)
		return nil
	}

	id, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "Error: invalid record id: %s\n", args[2])
		Exit(2)
		return nil
	}

	patch, err := parseSetFlags(setFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		Exit(2)
		return nil
	}
	if len(patch) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one --set Field=Value is required")
		Exit(2)
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	if err := store.Update(key, id, patch); err != nil {
		if errors.Is(err, model.ErrRecordNotFound) {
			fmt.Fprintf(os.Stderr, "Error: record %d not found in %s\n", id, key)
			Exit(1)
			return nil
		}
		return fmt.Errorf("failed to update record: %w", err)
	}

	if GetJSONOutput() {
		return printJSON(map[string]interface{}{"table": key.String(), "id": id, "updated": true})
	}
	if !IsQuiet() {
		fmt.Printf("Updated record %d in %s\n", id, key)
	}
	return nil
}
