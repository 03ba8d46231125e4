package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/tally/internal/daemon"
	"github.com/user/tally/internal/sync"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and per-table sync status",
	Long: `Show whether the background daemon is running and the recorded
sync state of every table: last sync time, sync count, and whether a
sync is pending or active.

Examples:
  tally status
  tally status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	d := daemon.New(cfg.DataDir)
	dStatus, err := d.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to read daemon status: %w", err)
	}

	meta := sync.NewMetadataStore(cfg.DataDir)
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	coord := sync.NewCoordinator(store, remoteClient(cfg), meta)
	defer coord.Close()
	tables := coord.Status()

	if GetJSONOutput() {
		return printJSON(map[string]interface{}{
			"daemon": dStatus,
			"remote": cfg.RemoteEndpoint != "",
			"tables": tables,
		})
	}

	if dStatus.Running {
		fmt.Printf("Daemon: running (pid %d, up %ds)\n", dStatus.PID, dStatus.UptimeSeconds)
	} else {
		fmt.Println("Daemon: not running")
	}
	if cfg.RemoteEndpoint == "" {
		fmt.Println("Remote: not configured")
	} else {
		fmt.Printf("Remote: %s\n", cfg.RemoteEndpoint)
	}

	if len(tables) == 0 {
		fmt.Println("No tables have synced yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tSTATE\tLAST SYNC\tSYNCS")
	for _, t := range tables {
		last := t.Meta.LastSync
		if last == "" {
			last = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", t.Key, t.State, last, t.Meta.SyncCount)
	}
	return w.Flush()
}
