package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/collabhub/collabhub/pkg/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit, and build time of collabctl.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if GetOutput() == "json" {
			return printJSON(cmd.OutOrStdout(), config.GetBuildInfo())
		}
		fmt.Fprintln(cmd.OutOrStdout(), config.VersionString("collabctl"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
