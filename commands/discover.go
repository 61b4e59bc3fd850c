package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/paketo-buildpacks/packit/v2/pexec"
	"github.com/paketo-buildpacks/tally/internal/convert"
	"github.com/paketo-buildpacks/tally/internal/discovery"
	"github.com/spf13/cobra"
)

type discoverFlags struct {
	root      string
	source    string
	format    string
	overrides map[string]string
	quiet     bool
	output    io.Writer
}

func discover() *cobra.Command {
	flags := &discoverFlags{}
	cmd := &cobra.Command{
		Use:   "discover <dir>",
		Short: "list the images found beneath a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.root = args[0]
			flags.overrides = changedSettings(cmd.Flags())
			flags.quiet = isQuiet(cmd)
			flags.output = cmd.OutOrStdout()

			return discoverRun(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.source, "source", "", "name of the artifact the images belong to (defaults to the directory name)")
	cmd.Flags().StringVar(&flags.format, "format", "markdown", "format of output options are (markdown, json)")
	addSettingFlags(cmd, "exclude-mediatypes")

	return cmd
}

func init() {
	rootCmd.AddCommand(discover())
}

func discoverRun(flags discoverFlags) error {
	if flags.format != "markdown" && flags.format != "json" {
		return fmt.Errorf("unknown format %q, please choose from the following formats: markdown, json", flags.format)
	}

	if flags.source == "" {
		flags.source = filepath.Base(filepath.Clean(flags.root))
	}

	cfg, err := loadConfig("", flags.overrides)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, flags.quiet)
	engine := discovery.NewEngine(convert.NewConverter(pexec.NewExecutable("skopeo"), logger), cfg.ExcludedMediaTypes(), logger)

	units, err := engine.Discover(flags.root, flags.source)
	if err != nil {
		return err
	}

	formatter := discovery.NewFormatter(flags.output)
	switch flags.format {
	case "json":
		formatter.JSON(flags.root, units)
	default:
		formatter.Markdown(flags.root, units)
	}

	return nil
}
