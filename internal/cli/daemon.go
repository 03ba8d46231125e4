package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/tally/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the background sync daemon",
	Long: `Manage the background process that watches the data directory and
syncs changed tables after a short quiet window.

Subcommands:
  start    launch the daemon in the background (idempotent)
  stop     stop it gracefully (idempotent)
  restart  stop then start
  status   show whether it is running
  run      run the sync loop in the foreground (used internally by start)`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background sync daemon",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background sync daemon",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStop,
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the background sync daemon",
	Args:  cobra.NoArgs,
	RunE:  runDaemonRestart,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStatus,
}

var daemonRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run the sync loop in the foreground",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runDaemonRun,
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonRestartCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonRunCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	d := daemon.New(cfg.DataDir)
	if running, pid := d.IsRunning(); running {
		if !IsQuiet() {
			fmt.Printf("Daemon already running (pid %d)\n", pid)
		}
		return nil
	}

	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	if !IsQuiet() {
		fmt.Println("Daemon started")
	}
	return nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := daemon.New(cfg.DataDir).Stop(); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	if !IsQuiet() {
		fmt.Println("Daemon stopped")
	}
	return nil
}

func runDaemonRestart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := daemon.New(cfg.DataDir).Restart(); err != nil {
		return fmt.Errorf("failed to restart daemon: %w", err)
	}
	if !IsQuiet() {
		fmt.Println("Daemon restarted")
	}
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	status, err := daemon.New(cfg.DataDir).GetStatus()
	if err != nil {
		return fmt.Errorf("failed to read daemon status: %w", err)
	}

	if GetJSONOutput() {
		return printJSON(status)
	}

	if !status.Running {
		fmt.Println("Daemon: not running")
		return nil
	}
	fmt.Printf("Daemon: running (pid %d, up %ds)\n", status.PID, status.UptimeSeconds)
	if !status.LastSync.IsZero() {
		fmt.Printf("Last sync: %s\n", status.LastSync.Format("2006-01-02 15:04:05"))
	}
	if status.ModulesWatched > 0 {
		fmt.Printf("Modules watched: %d\n", status.ModulesWatched)
	}
	return nil
}

func runDaemonRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return daemon.New(cfg.DataDir).RunForeground(cfg)
}
