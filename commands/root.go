package commands

import (
	"io"

	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "tally",
	Short:         "generate, merge and vulnerability-scan SBOMs for directories, images and ISOs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress progress output")
}

func Execute() error {
	return rootCmd.Execute()
}

func newLogger(w io.Writer, quiet bool) scribe.Logger {
	if quiet {
		w = io.Discard
	}

	return scribe.NewLogger(w)
}

func isQuiet(cmd *cobra.Command) bool {
	quiet, _ := cmd.Flags().GetBool("quiet")
	return quiet
}
