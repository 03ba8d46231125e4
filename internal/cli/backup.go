package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup <module> <table>",
	Short: "List the backups kept for a table",
	Long: `List the backup copies kept for a table, newest first. A backup
is taken automatically before every write; the five most recent are
retained.

Examples:
  tally backup expenses expenses`,
	Args: cobra.ExactArgs(2),
	RunE: runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <module> <table>",
	Short: "Restore a table from its most recent backup",
	Long: `Replace a table file with its most recent backup copy. Useful
after a bad edit or an unwanted merge.

Examples:
  tally restore expenses expenses`,
	Args: cobra.ExactArgs(2),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	key, err := parseTableKey(args[0], args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
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

	backups := store.Backups().List(store.Path(key))

	if GetJSONOutput() {
		names := make([]string, 0, len(backups))
		for _, b := range backups {
			names = append(names, filepath.Base(b))
		}
		return printJSON(map[string]interface{}{"table": key.String(), "backups": names})
	}

	if len(backups) == 0 {
		fmt.Printf("No backups for %s\n", key)
		return nil
	}
	for _, b := range backups {
		fmt.Println(filepath.Base(b))
	}
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	key, err := parseTableKey(args[0], args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
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

	if !store.Backups().Restore(store.Path(key)) {
		fmt.Fprintf(os.Stderr, "Error: no backups found for %s\n", key)
		Exit(1)
		return nil
	}

	if GetJSONOutput() {
		return printJSON(map[string]interface{}{"table": key.String(), "restored": true})
	}
	if !IsQuiet() {
		fmt.Printf("Restored %s from latest backup\n", key)
	}
	return nil
}
