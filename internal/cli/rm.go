package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/user/tally/internal/model"
)

var rmCmd = &cobra.Command{
	Use:   "rm <module> <table> <id>",
	Short: "Delete a record",
	Long: `Delete the record with the given id from a table. The previous
state of the file is kept in the table's backups.

Examples:
  tally rm expenses expenses 3`,
	Args: cobra.ExactArgs(3),
	RunE: runRm,
}

func init() {
	rootCmd.AddCommand(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
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

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	if err := store.Delete(key, id); err != nil {
		if errors.Is(err, model.ErrRecordNotFound) {
			fmt.Fprintf(os.Stderr, "Error: record %d not found in %s\n", id, key)
			Exit(1)
			return nil
		}
		return fmt.Errorf("failed to delete record: %w", err)
	}

	if GetJSONOutput() {
		return printJSON(map[string]interface{}{"table": key.String(), "id": id, "deleted": true})
	}
	if !IsQuiet() {
		fmt.Printf("Deleted record %d from %s\n", id, key)
	}
	return nil
}
