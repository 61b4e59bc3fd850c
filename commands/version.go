package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tallyVersion string

func version() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "version of tally",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tally %s\n", tallyVersion)
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(version())
}
