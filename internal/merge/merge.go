package merge

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/paketo-buildpacks/packit/v2/fs"
	"github.com/paketo-buildpacks/packit/v2/pexec"
	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/paketo-buildpacks/tally/internal"
	"github.com/paketo-buildpacks/tally/internal/scan"
)

// Undefined is the identity used when a result carries no name or version.
const Undefined = "undefined"

type Request struct {
	SBOMPaths    []string
	Name         string
	Version      string
	Hierarchical bool
}

// A Merger combines SBOMs into a single CycloneDX document using
// cyclonedx-cli.
type Merger struct {
	cli    internal.Executable
	logger scribe.Logger
}

func NewMerger(cli internal.Executable, logger scribe.Logger) Merger {
	return Merger{
		cli:    cli,
		logger: logger,
	}
}

func (m Merger) Merge(request Request, outputFile string) (string, error) {
	if len(request.SBOMPaths) == 0 {
		return "", internal.ValidationError("no SBOM files to merge")
	}

	if request.Name == "" {
		request.Name = Undefined
	}

	if request.Version == "" {
		request.Version = Undefined
	}

	err := m.cli.Execute(pexec.Execution{
		Args:   []string{"--version"},
		Stdout: bytes.NewBuffer(nil),
		Stderr: bytes.NewBuffer(nil),
	})
	if err != nil {
		if internal.IsMissingExecutable(err) {
			return "", internal.MissingDependencyError("cyclonedx-cli")
		}

		return "", fmt.Errorf("failed to check cyclonedx-cli version: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(outputFile), os.ModePerm)
	if err != nil {
		return "", fmt.Errorf("failed to create merge output directory: %w", err)
	}

	args := []string{"merge"}
	if request.Hierarchical {
		args = append(args, "--hierarchical")
	}

	args = append(args,
		"--output-file", outputFile,
		"--name", request.Name,
		"--version", request.Version,
		"--input-files",
	)
	args = append(args, request.SBOMPaths...)

	m.logger.Action("Merging %d SBOM(s) into %s", len(request.SBOMPaths), outputFile)

	buffer := bytes.NewBuffer(nil)
	err = m.cli.Execute(pexec.Execution{
		Args:   args,
		Stdout: buffer,
		Stderr: buffer,
	})
	if err != nil {
		m.logger.Detail("%s", buffer)
		return "", fmt.Errorf("failed to merge SBOMs: %w", err)
	}

	if exists, _ := fs.Exists(outputFile); exists {
		count, err := countComponents(outputFile)
		if err != nil {
			return "", err
		}

		m.logger.Action("Merged SBOM contains %d component(s)", count)
	}

	return outputFile, nil
}

// OutputFile returns the default location of the merged SBOM.
func OutputFile(dir, name, version string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_merged_sbom.json", scan.FileSafe(name), scan.FileSafe(version)))
}

// ExtractSBOMPaths returns the top-level SBOM path followed by the SBOM paths
// of every nested image result, visited in key order.
func ExtractSBOMPaths(result scan.Result) []string {
	var paths []string
	if result.SBOMPath != "" {
		paths = append(paths, result.SBOMPath)
	}

	if result.ImagesScan != nil {
		for _, id := range result.ImagesScan.IDs() {
			if path := result.ImagesScan.Results[id].SBOMPath; path != "" {
				paths = append(paths, path)
			}
		}
	}

	return paths
}

func ExtractName(result scan.Result) string {
	if result.Name == "" {
		return Undefined
	}

	return result.Name
}

func ExtractVersion(result scan.Result) string {
	if result.Version == "" {
		return Undefined
	}

	return result.Version
}

// FromResult builds a merge request for the SBOMs referenced by result.
func FromResult(result scan.Result, hierarchical bool) Request {
	return Request{
		SBOMPaths:    ExtractSBOMPaths(result),
		Name:         ExtractName(result),
		Version:      ExtractVersion(result),
		Hierarchical: hierarchical,
	}
}

func countComponents(path string) (count int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open merged SBOM: %w", err)
	}
	defer func() {
		if err2 := file.Close(); err2 != nil && err == nil {
			err = err2
		}
	}()

	var bom cdx.BOM
	err = cdx.NewBOMDecoder(file, cdx.BOMFileFormatJSON).Decode(&bom)
	if err != nil {
		return 0, fmt.Errorf("failed to decode merged SBOM: %w", err)
	}

	if bom.Components != nil {
		count = len(*bom.Components)
	}

	return count, err // err should be nil here, but return err to catch deferred error
}
