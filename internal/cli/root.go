// Package cli provides the command-line interface for tally.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Global flags
var (
	dataDirFlag string
	jsonOutput  bool
	quiet       bool
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "A local-first record store with background cloud sync",
	Long: `Tally keeps your records in plain CSV files you own, organized into
module directories under a single data dir, and syncs them to a cloud
backend in the background.

Features:
  - Plain CSV storage: every table is a file you can open anywhere
  - Atomic writes with automatic backups (last 5 kept per table)
  - Fluid schema: new fields become columns automatically
  - Background sync: debounced, conflict-merged, resumable
  - SQLite query cache for ad-hoc SELECTs over your data`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default: ~/.tally or $TALLY_DATA_DIR)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug output")
}

// ExitCode is used to communicate exit codes for testing
var ExitCode int

// ExitFunc is the function called to exit the program
// Can be overridden for testing
var ExitFunc = os.Exit

// Exit sets the exit code and calls the exit function
func Exit(code int) {
	ExitCode = code
	ExitFunc(code)
}

// GetJSONOutput returns whether JSON output is enabled
func GetJSONOutput() bool {
	return jsonOutput
}

// IsQuiet returns whether quiet mode is enabled
func IsQuiet() bool {
	return quiet
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return verbose
}
