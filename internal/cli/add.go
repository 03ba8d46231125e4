package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var addSetFlags []string

var addCmd = &cobra.Command{
	Use:   "add <module> <table>",
	Short: "Add a new record to a table",
	Long: `Add a new record to a table, creating the table on first use.

Fields are set with repeated --set flags. Unknown fields become new
columns; known fields are cleaned by column type (money clamps to
non-negative, progress to 0-100, booleans accept yes/on/1). A unique
integer id is assigned automatically, and created_at/updated_at are
stamped when the table carries those columns.

Examples:
  tally add expenses expenses --set amount=12.50 --set category=food --set date=2026-08-31
  tally add habits habits --set name="morning run" --set is_active=yes`,
	Args: cobra.ExactArgs(2),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringArrayVar(&addSetFlags, "set", nil, "Set field value (can be repeated): --set Field=Value")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	key, err := parseTableKey(args[0], args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		Exit(2)
		return nil
	}

	rec, err := parseSetFlags(addSetFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		Exit(2)
		return nil
	}
	if len(rec) == 0 {
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

	stored, err := store.Append(key, rec, nil)
	if err != nil {
		return fmt.Errorf("failed to add record: %w", err)
	}

	if GetJSONOutput() {
		return printJSON(stored)
	}

	id, _ := stored.ID()
	if !IsQuiet() {
		fmt.Printf("Added record %d to %s\n", id, key)
	}
	return nil
}
