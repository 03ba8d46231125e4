package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:   "sync [module [table]]",
	Short: "Sync tables with the remote backend now",
	Long: `Run a sync cycle immediately, bypassing the debounce window.

With no arguments every table in every module is synced. A module
argument narrows to that module; a table argument narrows to one table.
--force uploads even when nothing changed since the last sync.

Requires remote.endpoint in config.yaml.

Examples:
  tally sync
  tally sync expenses
  tally sync expenses expenses --force`,
	Args: cobra.MaximumNArgs(2),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "Upload even when nothing changed")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := remoteClient(cfg)
	if client == nil {
		fmt.Fprintln(os.Stderr, "Error: no remote endpoint configured (set remote.endpoint in config.yaml)")
		Exit(1)
		return nil
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	coord := newCoordinator(cfg, store, client)
	defer coord.Close()

	ctx := context.Background()

	switch len(args) {
	case 2:
		key, err := parseTableKey(args[0], args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			Exit(2)
			return nil
		}
		if err := coord.SyncNow(ctx, key, syncForce); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		if !IsQuiet() {
			fmt.Printf("Synced %s\n", key)
		}
		return nil

	case 1:
		var failed int
		for _, key := range store.ListTables(args[0]) {
			if err := coord.SyncNow(ctx, key, syncForce); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s: %v\n", key, err)
				failed++
			}
		}
		if failed > 0 {
			Exit(1)
			return nil
		}
		if !IsQuiet() {
			fmt.Printf("Synced module %s\n", args[0])
		}
		return nil

	default:
		if err := coord.SyncAll(ctx, syncForce); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		if !IsQuiet() {
			fmt.Println("Sync complete")
		}
		return nil
	}
}
