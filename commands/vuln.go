package commands

import (
	"fmt"
	"io"

	"github.com/paketo-buildpacks/tally/internal/scan"
	"github.com/paketo-buildpacks/tally/internal/vuln"
	"github.com/spf13/cobra"
)

type vulnFlags struct {
	configFile string
	results    string
	sbom       string
	overrides  map[string]string
	quiet      bool
	output     io.Writer
}

func vulnCommand() *cobra.Command {
	flags := &vulnFlags{}
	cmd := &cobra.Command{
		Use:   "vuln",
		Short: "scan SBOMs for vulnerabilities with grype",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.overrides = changedSettings(cmd.Flags())
			flags.quiet = isQuiet(cmd)
			flags.output = cmd.OutOrStdout()

			return vulnRun(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.configFile, "config", "", "path to a tally.toml or tally.yaml file")
	cmd.Flags().StringVar(&flags.results, "results", "", "path to a results file written by tally scan")
	cmd.Flags().StringVar(&flags.sbom, "sbom", "", "path to an SBOM to scan")
	addSettingFlags(cmd, "name", "version", "output-dir", "distro", "vuln-output-format", "vuln-output-file", "template-file", "templates-dir")

	cmd.MarkFlagsOneRequired("results", "sbom")
	cmd.MarkFlagsMutuallyExclusive("results", "sbom")

	return cmd
}

func init() {
	rootCmd.AddCommand(vulnCommand())
}

func vulnRun(flags vulnFlags) error {
	cfg, err := loadConfig(flags.configFile, flags.overrides)
	if err != nil {
		return err
	}

	logger := newLogger(flags.output, flags.quiet)
	logger.Title("tally %s", tallyVersion)
	logger.Process("Scanning for vulnerabilities")

	dispatcher := newDispatcher(cfg, logger)
	vulnContext := vuln.Context{
		Name:       cfg.Name,
		Version:    cfg.Version,
		OutputFile: cfg.VulnOutputFile,
	}

	var result scan.Result
	if flags.results != "" {
		scanned, err := scan.ReadResults(flags.results)
		if err != nil {
			return err
		}

		result, err = dispatcher.ScanResults(scanned, vulnContext)
		if err != nil {
			return err
		}
	} else {
		result, err = dispatcher.ScanSBOM(flags.sbom, vulnContext)
		if err != nil {
			return err
		}
	}

	logger.Break()
	for _, format := range cfg.VulnFormats() {
		if report, ok := result.Reports[format]; ok && report.Success {
			logger.Subprocess("%s: %s", format, report.VulnPath)
		}
	}

	images := scan.Aggregate{Results: result.ImageVulns}
	failures := images.Failures()
	for _, id := range failures {
		logger.Action("%s: %s", id, images.Results[id].Error)
	}

	if !result.Success {
		return fmt.Errorf("vulnerability scan failed: %s", result.Error)
	}

	if len(failures) > 0 {
		logger.Subprocess("%d of %d image vulnerability scan(s) failed", len(failures), len(images.Results))
	}

	return nil
}
