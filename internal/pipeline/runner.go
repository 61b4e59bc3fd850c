package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/paketo-buildpacks/tally/internal"
	"github.com/paketo-buildpacks/tally/internal/config"
	"github.com/paketo-buildpacks/tally/internal/discovery"
	"github.com/paketo-buildpacks/tally/internal/merge"
	"github.com/paketo-buildpacks/tally/internal/oci"
	"github.com/paketo-buildpacks/tally/internal/publish"
	"github.com/paketo-buildpacks/tally/internal/scan"
	"github.com/paketo-buildpacks/tally/internal/target"
	"github.com/paketo-buildpacks/tally/internal/vuln"
)

//go:generate faux --interface Extractor --output fakes/extractor.go
type Extractor interface {
	Label(isoPath string) (string, error)
	Extract(isoPath string) (string, error)
}

//go:generate faux --interface Fetcher --output fakes/fetcher.go
type Fetcher interface {
	Fetch(ctx context.Context, reference string) (oci.Layout, error)
}

//go:generate faux --interface Publisher --output fakes/publisher.go
type Publisher interface {
	Publish(ctx context.Context, files []string) ([]string, error)
}

// Dependencies are the components a Runner drives. Publisher may be nil.
type Dependencies struct {
	Classifier target.Classifier
	Discoverer discovery.Engine
	Scanner    scan.Scanner
	Converter  scan.Converter
	Extractor  Extractor
	Fetcher    Fetcher
	Merger     merge.Merger
	Dispatcher vuln.Dispatcher
	Publisher  Publisher
}

// A Report is everything produced by one run. It is persisted as the
// results file; the embedded scan result keeps the file readable with
// scan.ReadResults.
type Report struct {
	scan.Result

	Vulnerabilities       *scan.Result `json:"vulnerabilities,omitempty"`
	MergedSBOMPath        string       `json:"merged_sbom_path,omitempty"`
	MergedVulnerabilities *scan.Result `json:"merged_vulnerabilities,omitempty"`
	Published             []string     `json:"published,omitempty"`

	ResultsPath string `json:"-"`
}

type handler func(context.Context, target.Target) (scan.Result, error)

// A Runner classifies a target, dispatches it to the handler for its kind and
// then runs the merge, vulnerability and publish phases.
type Runner struct {
	config   config.Config
	deps     Dependencies
	handlers map[target.Kind]handler
	logger   scribe.Logger
}

func NewRunner(cfg config.Config, deps Dependencies, logger scribe.Logger) Runner {
	r := Runner{
		config: cfg,
		deps:   deps,
		logger: logger,
	}

	r.handlers = map[target.Kind]handler{
		target.Git:       r.scanDirectory,
		target.Directory: r.scanDirectory,
		target.ISO:       r.scanISO,
		target.Image:     r.scanImage,
		target.Archive:   r.scanArchive,
		target.File:      r.scanFile,
	}

	return r
}

// Handles reports whether the runner has a handler for kind.
func (r Runner) Handles(kind target.Kind) bool {
	_, ok := r.handlers[kind]
	return ok
}

func (r Runner) Run(ctx context.Context, path string) (Report, error) {
	r.logger.Process("Classifying %s", path)
	tgt, err := r.deps.Classifier.Classify(path)
	if err != nil {
		return Report{}, err
	}
	r.logger.Break()

	handle, ok := r.handlers[tgt.Kind()]
	if !ok {
		return Report{}, internal.NewValidationError("unsupported target kind %q", tgt.Kind())
	}

	r.logger.Process("Scanning %s", tgt.Kind())
	result, err := handle(ctx, tgt)
	if err != nil {
		return Report{}, err
	}
	r.logger.Break()

	report := Report{Result: result}
	report.ResultsPath = filepath.Join(r.config.OutputDir, fmt.Sprintf("%s_%s_results.json", scan.FileSafe(merge.ExtractName(result)), scan.FileSafe(merge.ExtractVersion(result))))

	if !result.Success && result.ImagesScan == nil {
		err = scan.WriteResults(report.ResultsPath, report)
		if err != nil {
			return Report{}, err
		}

		return report, fmt.Errorf("failed to scan %s: %s", tgt.Path(), result.Error)
	}

	if r.config.Merge {
		r.logger.Process("Merging SBOMs")
		outputFile := r.config.MergeOutputFile
		if outputFile == "" {
			outputFile = merge.OutputFile(r.config.OutputDir, merge.ExtractName(result), merge.ExtractVersion(result))
		} else if !filepath.IsAbs(outputFile) {
			outputFile = filepath.Join(r.config.OutputDir, outputFile)
		}

		report.MergedSBOMPath, err = r.deps.Merger.Merge(merge.FromResult(result, r.config.MergeHierarchical), outputFile)
		if err != nil {
			return Report{}, err
		}
		r.logger.Break()
	}

	if r.config.Vuln {
		r.logger.Process("Scanning for vulnerabilities")
		vulns, err := r.deps.Dispatcher.ScanResults(result, vuln.Context{
			Name:       result.Name,
			Version:    result.Version,
			OutputFile: r.config.VulnOutputFile,
			Target:     tgt.Path(),
		})
		if err != nil {
			return Report{}, err
		}
		report.Vulnerabilities = &vulns

		if report.MergedSBOMPath != "" {
			merged, err := r.deps.Dispatcher.ScanSBOM(report.MergedSBOMPath, vuln.Context{
				Name:    merge.ExtractName(result),
				Version: merge.ExtractVersion(result),
				Suffix:  "merged_vuln",
			})
			if err != nil {
				return Report{}, err
			}
			report.MergedVulnerabilities = &merged
		}
		r.logger.Break()
	}

	err = scan.WriteResults(report.ResultsPath, report)
	if err != nil {
		return Report{}, err
	}
	r.logger.Process("Results written to %s", report.ResultsPath)

	if r.deps.Publisher != nil {
		r.logger.Break()
		r.logger.Process("Publishing artifacts")

		results := []scan.Result{result}
		for _, v := range []*scan.Result{report.Vulnerabilities, report.MergedVulnerabilities} {
			if v != nil {
				results = append(results, *v)
			}
		}

		files := publish.Artifacts(results...)
		if report.MergedSBOMPath != "" {
			files = append(files, report.MergedSBOMPath)
		}
		files = append(files, report.ResultsPath)

		report.Published, err = r.deps.Publisher.Publish(ctx, files)
		if err != nil {
			return Report{}, fmt.Errorf("failed to publish artifacts: %w", err)
		}
	}

	return report, nil
}

// scanImages discovers and scans the images beneath root. Enumeration
// failures are recorded in the aggregate.
func (r Runner) scanImages(root, source string) (scan.Aggregate, error) {
	units, err := r.deps.Discoverer.Discover(root, source)
	if err != nil {
		var missing internal.MissingDependencyError
		if errors.As(err, &missing) {
			return scan.Aggregate{}, err
		}

		r.logger.Subprocess("Image discovery failed: %s", err)
		return scan.FailedAggregate(err), nil
	}

	return r.deps.Scanner.ScanBatch(units)
}
