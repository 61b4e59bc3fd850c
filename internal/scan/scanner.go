package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"github.com/paketo-buildpacks/packit/v2/fs"
	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/paketo-buildpacks/tally/internal"
	"github.com/paketo-buildpacks/tally/internal/discovery"
)

// Target types understood by the scanner.
const (
	TypeDir           = "dir"
	TypeOCIDir        = "oci-dir"
	TypeDockerArchive = "docker-archive"
	TypeOCIArchive    = "oci-archive"
	TypeFile          = "file"
)

//go:generate faux --interface Converter --output fakes/converter.go
type Converter interface {
	ConvertToOCI(path, destination string) (string, error)
}

// An Invocation describes one scan of one target.
type Invocation struct {
	Target     string
	TargetType string
	Name       string
	Version    string
	OutputFile string
	Metadata   Metadata
}

type Options struct {
	OutputDir    string
	OutputFormat string
	ConvertDir   string
}

// A Scanner builds scan invocations for targets and image units and records
// their outcome as Results.
type Scanner struct {
	generator Generator
	converter Converter
	options   Options
	logger    scribe.Logger
}

func NewScanner(generator Generator, converter Converter, options Options, logger scribe.Logger) Scanner {
	return Scanner{
		generator: generator,
		converter: converter,
		options:   options,
		logger:    logger,
	}
}

// Scan runs the generator for a single invocation. A scanner failure is
// recorded in the returned Result; an error is only returned when the
// scanner is missing or the output directory cannot be created.
func (s Scanner) Scan(invocation Invocation) (Result, error) {
	outputFile := OutputFile(OutputRequest{
		Dir:      s.options.OutputDir,
		Override: invocation.OutputFile,
		Name:     invocation.Name,
		Version:  invocation.Version,
		Metadata: invocation.Metadata,
		Target:   invocation.Target,
		Suffix:   "sbom",
		Format:   s.options.OutputFormat,
	})

	err := os.MkdirAll(filepath.Dir(outputFile), os.ModePerm)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := Result{
		Scanner:    "syft",
		Target:     invocation.Target,
		TargetType: invocation.TargetType,
		Name:       invocation.Name,
		Version:    invocation.Version,
		Format:     s.options.OutputFormat,
	}
	if result.Name == "" {
		result.Name = invocation.Metadata.ImageName
		result.Version = invocation.Metadata.ImageVersion
	}

	source := fmt.Sprintf("%s:%s", invocation.TargetType, invocation.Target)
	s.logger.Action("Scanning %s", source)

	stdout, err := s.generator.Generate(Request{
		Source:     source,
		Name:       invocation.Name,
		Version:    invocation.Version,
		Format:     s.options.OutputFormat,
		OutputFile: outputFile,
	})
	result.Stdout = stdout
	if err != nil {
		var missing internal.MissingDependencyError
		if errors.As(err, &missing) {
			return Result{}, err
		}

		s.logger.Action("Scan failed: %s", err)
		return result.Failed(err), nil
	}

	result.Success = true
	result.SBOMPath = outputFile

	if exists, _ := fs.Exists(outputFile); exists {
		d, err := fileDigest(outputFile)
		if err != nil {
			return Result{}, err
		}
		result.Digest = d.String()
	}

	s.logger.Action("SBOM written to %s", outputFile)

	return result, nil
}

// ScanUnit converts the unit to an OCI layout unless it has an excluded
// media type, and scans it. Excluded units are scanned as plain
// directories.
func (s Scanner) ScanUnit(unit discovery.ImageUnit) (Result, error) {
	invocation := Invocation{
		Target:     unit.Path,
		TargetType: TypeDir,
		Name:       unit.Name,
		Version:    unit.Version,
	}

	if !unit.Excluded {
		destination := filepath.Join(s.options.ConvertDir, fmt.Sprintf("%s_%s", FileSafe(unit.Name), FileSafe(unit.Version)))

		path, err := s.converter.ConvertToOCI(unit.Path, destination)
		if err != nil {
			var missing internal.MissingDependencyError
			if errors.As(err, &missing) {
				return Result{}, err
			}

			result := Result{
				Scanner:    "syft",
				Target:     unit.Path,
				TargetType: TypeOCIDir,
				Name:       unit.Name,
				Version:    unit.Version,
				Format:     s.options.OutputFormat,
			}

			return result.Failed(err), nil
		}

		invocation.Target = path
		invocation.TargetType = TypeOCIDir
	}

	return s.Scan(invocation)
}

// ScanBatch scans units sequentially in the given order. A failing unit is
// recorded and the batch moves on to the next one.
func (s Scanner) ScanBatch(units []discovery.ImageUnit) (Aggregate, error) {
	aggregate := NewAggregate()

	for _, unit := range units {
		s.logger.Subprocess("%s", unit.ID())

		result, err := s.ScanUnit(unit)
		if err != nil {
			return Aggregate{}, err
		}

		aggregate.Add(unit.ID(), result)
	}

	if failures := aggregate.Failures(); len(failures) > 0 {
		s.logger.Subprocess("%d of %d image(s) failed to scan: %v", len(failures), len(units), failures)
	}

	return aggregate, nil
}

func fileDigest(path string) (d digest.Digest, err error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open SBOM: %w", err)
	}
	defer func() {
		if err2 := file.Close(); err2 != nil && err == nil {
			err = err2
		}
	}()

	d, err = digest.FromReader(file)
	if err != nil {
		return "", fmt.Errorf("failed to compute SBOM digest: %w", err)
	}

	return d, err // err should be nil here, but return err to catch deferred error
}
