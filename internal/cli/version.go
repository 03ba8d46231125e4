package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tally version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if GetJSONOutput() {
			_ = printJSON(map[string]string{"version": Version})
			return
		}
		fmt.Printf("tally %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
