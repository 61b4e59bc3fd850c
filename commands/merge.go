package commands

import (
	"io"
	"path/filepath"

	"github.com/paketo-buildpacks/packit/v2/pexec"
	"github.com/paketo-buildpacks/tally/internal/merge"
	"github.com/paketo-buildpacks/tally/internal/scan"
	"github.com/spf13/cobra"
)

type mergeFlags struct {
	configFile string
	results    string
	sboms      []string
	overrides  map[string]string
	quiet      bool
	output     io.Writer
}

func mergeCommand() *cobra.Command {
	flags := &mergeFlags{}
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "merge SBOMs into a single CycloneDX document",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.overrides = changedSettings(cmd.Flags())
			flags.quiet = isQuiet(cmd)
			flags.output = cmd.OutOrStdout()

			return mergeRun(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.configFile, "config", "", "path to a tally.toml or tally.yaml file")
	cmd.Flags().StringVar(&flags.results, "results", "", "path to a results file written by tally scan")
	cmd.Flags().StringSliceVar(&flags.sboms, "sbom", nil, "path to an SBOM to merge (repeatable)")
	addSettingFlags(cmd, "name", "version", "output-dir", "merge-output-file", "merge-hierarchical")

	cmd.MarkFlagsOneRequired("results", "sbom")
	cmd.MarkFlagsMutuallyExclusive("results", "sbom")

	return cmd
}

func init() {
	rootCmd.AddCommand(mergeCommand())
}

func mergeRun(flags mergeFlags) error {
	cfg, err := loadConfig(flags.configFile, flags.overrides)
	if err != nil {
		return err
	}

	logger := newLogger(flags.output, flags.quiet)
	logger.Title("tally %s", tallyVersion)

	request := merge.Request{
		SBOMPaths:    flags.sboms,
		Name:         cfg.Name,
		Version:      cfg.Version,
		Hierarchical: cfg.MergeHierarchical,
	}

	if flags.results != "" {
		result, err := scan.ReadResults(flags.results)
		if err != nil {
			return err
		}

		request = merge.FromResult(result, cfg.MergeHierarchical)
		if cfg.Name != "" {
			request.Name = cfg.Name
		}

		if cfg.Version != "" {
			request.Version = cfg.Version
		}
	}

	outputFile := cfg.MergeOutputFile
	if outputFile == "" {
		outputFile = merge.OutputFile(cfg.OutputDir, nameOrUndefined(request.Name), nameOrUndefined(request.Version))
	} else if !filepath.IsAbs(outputFile) {
		outputFile = filepath.Join(cfg.OutputDir, outputFile)
	}

	logger.Process("Merging SBOMs")
	path, err := merge.NewMerger(pexec.NewExecutable("cyclonedx-cli"), logger).Merge(request, outputFile)
	if err != nil {
		return err
	}

	logger.Break()
	logger.Process("Merged SBOM written to %s", path)

	return nil
}

func nameOrUndefined(value string) string {
	if value == "" {
		return merge.Undefined
	}

	return value
}
