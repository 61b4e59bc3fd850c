package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paketo-buildpacks/packit/v2/fs"
	"github.com/paketo-buildpacks/packit/v2/vacation"
	"github.com/paketo-buildpacks/tally/internal"
	"github.com/paketo-buildpacks/tally/internal/convert"
	"github.com/paketo-buildpacks/tally/internal/discovery"
	"github.com/paketo-buildpacks/tally/internal/iso"
	"github.com/paketo-buildpacks/tally/internal/oci"
	"github.com/paketo-buildpacks/tally/internal/scan"
	"github.com/paketo-buildpacks/tally/internal/target"
)

func (r Runner) scanDirectory(_ context.Context, tgt target.Target) (scan.Result, error) {
	return r.scanTree(tgt.Path(), tgt, r.config.OutputFile)
}

// scanTree scans root as a directory and, when it holds an images directory,
// every image beneath it.
func (r Runner) scanTree(root string, tgt target.Target, outputFile string) (scan.Result, error) {
	result, err := r.deps.Scanner.Scan(scan.Invocation{
		Target:     root,
		TargetType: scan.TypeDir,
		Name:       tgt.Name(),
		Version:    tgt.Version(),
		OutputFile: outputFile,
	})
	if err != nil {
		return scan.Result{}, err
	}

	if !r.config.ScanEmbeddedImages {
		return result, nil
	}

	imagesDir := filepath.Join(root, discovery.ImagesDir)
	if exists, _ := fs.Exists(imagesDir); !exists {
		return result, nil
	}

	r.logger.Subprocess("Scanning embedded images in %s", imagesDir)
	aggregate, err := r.scanImages(root, tgt.Name())
	if err != nil {
		return scan.Result{}, err
	}

	result.HasImages = true
	result.ImagesScan = &aggregate

	return result, nil
}

func (r Runner) scanISO(_ context.Context, tgt target.Target) (scan.Result, error) {
	label, err := r.deps.Extractor.Label(tgt.Path())
	if err != nil {
		return scan.Result{}, fmt.Errorf("failed to read ISO %s: %w", tgt.Path(), err)
	}

	r.logger.Subprocess("Volume label: %s", label)

	name, version := iso.Identity(tgt.Path(), label, r.config.Name, r.config.Version)
	tgt = tgt.WithIdentity(name, version)

	dir, err := r.deps.Extractor.Extract(tgt.Path())
	if err != nil {
		return scan.Result{}, fmt.Errorf("failed to extract ISO %s: %w", tgt.Path(), err)
	}

	outputFile := r.config.OutputFile
	if outputFile == "" {
		outputFile = fmt.Sprintf("%s_sbom.%s", iso.OutputName(scan.FileSafe(name), scan.FileSafe(version)), scan.Extension(r.config.OutputFormat))
	}

	result, err := r.deps.Scanner.Scan(scan.Invocation{
		Target:     dir,
		TargetType: scan.TypeDir,
		Name:       name,
		Version:    version,
		OutputFile: outputFile,
	})
	if err != nil {
		return scan.Result{}, err
	}

	result.VolumeLabel = label
	result.ExtractedDir = dir

	if !r.config.ScanEmbeddedImages {
		return result, nil
	}

	imagesDir, ok := iso.FindImagesDir(dir)
	if !ok {
		return result, nil
	}

	r.logger.Subprocess("Scanning embedded images in %s", imagesDir)
	aggregate, err := r.scanImages(imagesDir, name)
	if err != nil {
		return scan.Result{}, err
	}

	result.HasImages = true
	result.ImagesScan = &aggregate

	return result, nil
}

func (r Runner) scanImage(ctx context.Context, tgt target.Target) (scan.Result, error) {
	if tgt.Reference() {
		layout, err := r.deps.Fetcher.Fetch(ctx, tgt.Path())
		if err != nil {
			return scan.Result{}, err
		}

		return r.deps.Scanner.Scan(scan.Invocation{
			Target:     layout.Path,
			TargetType: scan.TypeOCIDir,
			Name:       tgt.Name(),
			Version:    tgt.Version(),
			OutputFile: r.config.OutputFile,
		})
	}

	info, err := os.Stat(tgt.Path())
	if err != nil {
		return scan.Result{}, fmt.Errorf("failed to stat image %s: %w", tgt.Path(), err)
	}

	invocation := scan.Invocation{
		Target:     tgt.Path(),
		Name:       tgt.Name(),
		Version:    tgt.Version(),
		OutputFile: r.config.OutputFile,
	}

	origin := convert.DetectOrigin(tgt.Path())

	if !info.IsDir() {
		invocation.TargetType = scan.TypeDockerArchive
		if origin == convert.OCI {
			invocation.TargetType = scan.TypeOCIArchive
		}

		return r.deps.Scanner.Scan(invocation)
	}

	switch origin {
	case convert.OCI:
		invocation.TargetType = scan.TypeOCIDir

	case convert.Docker:
		destination := filepath.Join(r.config.ConvertDir, fmt.Sprintf("%s_%s", scan.FileSafe(tgt.Name()), scan.FileSafe(tgt.Version())))

		path, err := r.deps.Converter.ConvertToOCI(tgt.Path(), destination)
		if err != nil {
			var missing internal.MissingDependencyError
			if errors.As(err, &missing) {
				return scan.Result{}, err
			}

			return scan.Result{
				Scanner:    "syft",
				Target:     tgt.Path(),
				TargetType: scan.TypeOCIDir,
				Name:       tgt.Name(),
				Version:    tgt.Version(),
				Format:     r.config.OutputFormat,
			}.Failed(err), nil
		}

		invocation.Target = path
		invocation.TargetType = scan.TypeOCIDir

	default:
		r.logger.Subprocess("%s is not an image layout, scanning the images beneath it", tgt.Path())
		aggregate, err := r.scanImages(tgt.Path(), tgt.Name())
		if err != nil {
			return scan.Result{}, err
		}

		return scan.Result{
			Scanner:    "syft",
			Success:    aggregate.Success,
			Target:     tgt.Path(),
			TargetType: scan.TypeDir,
			Name:       tgt.Name(),
			Version:    tgt.Version(),
			Error:      aggregate.Error,
			HasImages:  true,
			ImagesScan: &aggregate,
		}, nil
	}

	if r.config.Name == "" {
		if metadata, ok := oci.Metadata(invocation.Target); ok {
			invocation.Name = ""
			invocation.Version = ""
			invocation.Metadata = metadata
		}
	}

	return r.deps.Scanner.Scan(invocation)
}

func (r Runner) scanArchive(_ context.Context, tgt target.Target) (scan.Result, error) {
	destination := filepath.Join(r.config.ExtractDir, filepath.Base(tgt.Path()))

	err := extractArchive(tgt.Path(), destination)
	if err != nil {
		return scan.Result{}, err
	}

	r.logger.Subprocess("Extracted %s to %s", tgt.Path(), destination)

	return r.scanTree(destination, tgt, r.config.OutputFile)
}

func (r Runner) scanFile(_ context.Context, tgt target.Target) (scan.Result, error) {
	return r.deps.Scanner.Scan(scan.Invocation{
		Target:     tgt.Path(),
		TargetType: scan.TypeFile,
		Name:       tgt.Name(),
		Version:    tgt.Version(),
		OutputFile: r.config.OutputFile,
	})
}

func extractArchive(path, destination string) (err error) {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		if err2 := file.Close(); err2 != nil && err == nil {
			err = err2
		}
	}()

	err = os.RemoveAll(destination)
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", destination, err)
	}

	err = os.MkdirAll(destination, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destination, err)
	}

	err = vacation.NewArchive(file).Decompress(destination)
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", path, err)
	}

	return err // err should be nil here, but return err to catch deferred error
}
