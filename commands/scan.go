package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/paketo-buildpacks/packit/v2/pexec"
	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/paketo-buildpacks/tally/internal/catalog"
	"github.com/paketo-buildpacks/tally/internal/config"
	"github.com/paketo-buildpacks/tally/internal/convert"
	"github.com/paketo-buildpacks/tally/internal/discovery"
	"github.com/paketo-buildpacks/tally/internal/iso"
	"github.com/paketo-buildpacks/tally/internal/merge"
	"github.com/paketo-buildpacks/tally/internal/oci"
	"github.com/paketo-buildpacks/tally/internal/pipeline"
	"github.com/paketo-buildpacks/tally/internal/publish"
	"github.com/paketo-buildpacks/tally/internal/scan"
	"github.com/paketo-buildpacks/tally/internal/target"
	"github.com/paketo-buildpacks/tally/internal/vuln"
	"github.com/spf13/cobra"
)

type scanFlags struct {
	configFile string
	target     string
	overrides  map[string]string
	quiet      bool
	output     io.Writer
}

func scanCommand() *cobra.Command {
	flags := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan [target]",
		Short: "generate SBOMs for a directory, git repository, ISO, image, archive or file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				flags.target = args[0]
			}
			flags.overrides = changedSettings(cmd.Flags())
			flags.quiet = isQuiet(cmd)
			flags.output = cmd.OutOrStdout()

			return scanRun(cmd.Context(), *flags)
		},
	}
	cmd.Flags().StringVar(&flags.configFile, "config", "", "path to a tally.toml or tally.yaml file")
	addSettingFlags(cmd,
		"target-type", "name", "version", "output-format", "output-file", "output-dir",
		"exclude-mediatypes", "distro", "merge", "merge-hierarchical", "merge-output-file",
		"vuln", "vuln-output-format", "vuln-output-file", "template-file", "templates-dir",
		"scan-embedded-images", "convert-dir", "extract-dir", "engine",
	)

	return cmd
}

func init() {
	rootCmd.AddCommand(scanCommand())
}

func scanRun(ctx context.Context, flags scanFlags) error {
	if flags.target != "" {
		flags.overrides["target"] = flags.target
	}

	cfg, err := loadConfig(flags.configFile, flags.overrides)
	if err != nil {
		return err
	}

	logger := newLogger(flags.output, flags.quiet)
	logger.Title("tally %s", tallyVersion)

	deps, err := scanDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(cfg, deps, logger)
	report, err := runner.Run(ctx, cfg.Target)
	if err != nil {
		return err
	}

	logger.Break()
	logger.Process("Summary")
	logger.Subprocess("SBOM: %s", report.SBOMPath)

	if report.ImagesScan != nil {
		failures := report.ImagesScan.Failures()
		logger.Subprocess("Images: %d scanned, %d failed", len(report.ImagesScan.ScannedImages), len(failures))
		for _, id := range failures {
			logger.Action("%s: %s", id, report.ImagesScan.Results[id].Error)
		}
	}

	if report.MergedSBOMPath != "" {
		logger.Subprocess("Merged SBOM: %s", report.MergedSBOMPath)
	}

	if report.Vulnerabilities != nil && report.Vulnerabilities.VulnPath != "" {
		logger.Subprocess("Vulnerabilities: %s", report.Vulnerabilities.VulnPath)
	}

	if len(report.Published) > 0 {
		logger.Subprocess("Published %d artifact(s)", len(report.Published))
	}

	logger.Subprocess("Results: %s", report.ResultsPath)

	return nil
}

func scanDependencies(ctx context.Context, cfg config.Config, logger scribe.Logger) (pipeline.Dependencies, error) {
	converter := convert.NewConverter(pexec.NewExecutable("skopeo"), logger)

	var generator scan.Generator = scan.NewSyftCLI(pexec.NewExecutable("syft"))
	if cfg.Engine == config.EngineBuiltin {
		generator = catalog.NewCataloger(logger)
	}

	deps := pipeline.Dependencies{
		Classifier: target.NewClassifier(target.Options{
			Kind:    cfg.TargetType,
			Name:    cfg.Name,
			Version: cfg.Version,
		}, logger),
		Discoverer: discovery.NewEngine(converter, cfg.ExcludedMediaTypes(), logger),
		Scanner: scan.NewScanner(generator, converter, scan.Options{
			OutputDir:    cfg.OutputDir,
			OutputFormat: cfg.OutputFormat,
			ConvertDir:   cfg.ConvertDir,
		}, logger),
		Converter:  converter,
		Extractor:  iso.NewExtractor(cfg.ExtractDir, logger),
		Fetcher:    oci.NewFetcher(cfg.ConvertDir, logger),
		Merger:     merge.NewMerger(pexec.NewExecutable("cyclonedx-cli"), logger),
		Dispatcher: newDispatcher(cfg, logger),
	}

	if cfg.Publish.Enabled() {
		store, err := publish.NewMinioStore(ctx, cfg.Publish)
		if err != nil {
			return pipeline.Dependencies{}, fmt.Errorf("failed to configure publishing: %w", err)
		}

		deps.Publisher = publish.NewPublisher(store, cfg.Publish.Prefix, logger)
	}

	return deps, nil
}

func newDispatcher(cfg config.Config, logger scribe.Logger) vuln.Dispatcher {
	return vuln.NewDispatcher(pexec.NewExecutable("grype"), catalog.ReleaseProbe{}, vuln.Options{
		OutputDir:    cfg.OutputDir,
		Formats:      cfg.VulnFormats(),
		TemplatesDir: cfg.TemplatesDir,
		TemplateFile: cfg.TemplateFile,
		Distro:       cfg.Distro,
	}, logger)
}
