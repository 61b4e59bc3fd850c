package commands

import (
	"fmt"
	"io"

	"github.com/paketo-buildpacks/packit/v2/fs"
	"github.com/paketo-buildpacks/tally/internal/config"
	"github.com/spf13/cobra"
)

type configInitFlags struct {
	path   string
	force  bool
	output io.Writer
}

func configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "manage tally configuration files",
	}
	cmd.AddCommand(configInit())

	return cmd
}

func configInit() *cobra.Command {
	flags := &configInitFlags{}
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a configuration file holding the default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.path = "tally.toml"
			if len(args) > 0 {
				flags.path = args[0]
			}
			flags.output = cmd.OutOrStdout()

			return configInitRun(*flags)
		},
	}
	cmd.Flags().BoolVar(&flags.force, "force", false, "overwrite an existing file")

	return cmd
}

func init() {
	rootCmd.AddCommand(configCommand())
}

func configInitRun(flags configInitFlags) error {
	exists, err := fs.Exists(flags.path)
	if err != nil {
		return err
	}

	if exists && !flags.force {
		return fmt.Errorf("%s already exists, use --force to overwrite it", flags.path)
	}

	err = config.Write(flags.path, config.Default())
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(flags.output, "Wrote %s\n", flags.path)

	return nil
}
