package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// versionCmd prints the maestro version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the maestro version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "maestro version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
