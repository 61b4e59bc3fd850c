package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anchore/syft/syft"
	"github.com/anchore/syft/syft/source"
	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/paketo-buildpacks/tally/internal/scan"
)

// A Cataloger generates SBOMs in-process using the syft library.
type Cataloger struct {
	logger scribe.Logger
}

func NewCataloger(logger scribe.Logger) Cataloger {
	return Cataloger{
		logger: logger,
	}
}

// Scan catalogs a source given as {type}:{path}, e.g. oci-dir:/tmp/image,
// across all image layers.
func (c Cataloger) Scan(ctx context.Context, input, name, version string) (SBOM, error) {
	cfg := syft.DefaultGetSourceConfig().WithAlias(source.Alias{Name: name, Version: version})

	if scheme, path, found := strings.Cut(input, ":"); found && !filepath.IsAbs(input) {
		cfg = cfg.WithSources(scheme)
		input = path
	}

	src, err := syft.GetSource(ctx, input, cfg)
	if err != nil {
		return SBOM{}, fmt.Errorf("failed to resolve source %s: %w", input, err)
	}
	defer src.Close()

	createCfg := syft.DefaultCreateSBOMConfig()
	createCfg.Search.Scope = source.AllLayersScope

	bom, err := syft.CreateSBOM(ctx, src, createCfg)
	if err != nil {
		return SBOM{}, fmt.Errorf("failed to catalog %s: %w", input, err)
	}

	return NewSBOM(*bom), nil
}

// Generate implements scan.Generator by cataloging the source and writing the
// encoded SBOM to the requested output file.
func (c Cataloger) Generate(request scan.Request) (string, error) {
	_, err := MediaType(request.Format)
	if err != nil {
		return "", err
	}

	bom, err := c.Scan(context.Background(), request.Source, request.Name, request.Version)
	if err != nil {
		return "", err
	}

	err = writeSBOM(request.OutputFile, bom, request.Format)
	if err != nil {
		return "", err
	}

	packages := bom.Packages()
	c.logger.Detail("Cataloged %d package(s)", len(packages))

	return fmt.Sprintf("cataloged %d packages\n", len(packages)), nil
}

func writeSBOM(path string, bom SBOM, outputFormat string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create SBOM file: %w", err)
	}
	defer func() {
		if err2 := file.Close(); err2 != nil && err == nil {
			err = err2
		}
	}()

	return bom.Encode(outputFormat, file)
}
