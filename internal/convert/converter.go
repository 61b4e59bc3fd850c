package convert

import (
	"bytes"
	"fmt"
	"os"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/paketo-buildpacks/packit/v2/pexec"
	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/paketo-buildpacks/tally/internal"
	"golang.org/x/exp/slices"
)

// A Converter normalizes image layouts to OCI and inspects their media types
// using skopeo.
type Converter struct {
	skopeo internal.Executable
	logger scribe.Logger
}

func NewConverter(skopeo internal.Executable, logger scribe.Logger) Converter {
	return Converter{
		skopeo: skopeo,
		logger: logger,
	}
}

// ConvertToOCI copies a Docker layout into an OCI layout at destination and
// returns the path that should be scanned. OCI layouts are returned as-is and
// unrecognized layouts are returned unchanged so that scanning can still be
// attempted against the raw directory.
func (c Converter) ConvertToOCI(path, destination string) (string, error) {
	switch DetectOrigin(path) {
	case OCI:
		c.logger.Action("%s is already in OCI format", path)
		return path, nil

	case Docker:
		err := os.MkdirAll(destination, os.ModePerm)
		if err != nil {
			return "", fmt.Errorf("failed to create conversion directory: %w", err)
		}

		c.logger.Action("Converting %s to OCI format at %s", path, destination)

		stderr := bytes.NewBuffer(nil)
		err = c.skopeo.Execute(pexec.Execution{
			Args:   []string{"copy", fmt.Sprintf("dir:%s", path), fmt.Sprintf("oci:%s", destination), "--format", "oci"},
			Stdout: stderr,
			Stderr: stderr,
		})
		if err != nil {
			if internal.IsMissingExecutable(err) {
				return "", internal.MissingDependencyError("skopeo")
			}

			return "", fmt.Errorf("failed to convert %s to OCI format: %w: %s", path, err, stderr)
		}

		return destination, nil

	default:
		c.logger.Action("%s is not in a recognized image format, scanning it as-is", path)
		return path, nil
	}
}

// CheckExcludedMediaTypes reports whether the config media type or any of the
// layer media types of the image at path is in the excluded set. Failures to
// inspect the image are returned rather than treated as "not excluded".
func (c Converter) CheckExcludedMediaTypes(path string, excluded []string) (bool, error) {
	if len(excluded) == 0 {
		return false, nil
	}

	stdout := bytes.NewBuffer(nil)
	stderr := bytes.NewBuffer(nil)
	err := c.skopeo.Execute(pexec.Execution{
		Args:   []string{"inspect", fmt.Sprintf("dir:%s", path), "--raw"},
		Stdout: stdout,
		Stderr: stderr,
	})
	if err != nil {
		if internal.IsMissingExecutable(err) {
			return false, internal.MissingDependencyError("skopeo")
		}

		return false, fmt.Errorf("failed to inspect image at %s: %w: %s", path, err, stderr)
	}

	manifest, err := v1.ParseManifest(stdout)
	if err != nil {
		return false, fmt.Errorf("failed to parse manifest of image at %s: %w", path, err)
	}

	var matches []string
	for _, mediaType := range MediaTypes(*manifest) {
		if slices.Contains(excluded, mediaType) {
			matches = append(matches, mediaType)
		}
	}

	if len(matches) > 0 {
		c.logger.Action("Excluded media types found: %v", matches)
		return true, nil
	}

	return false, nil
}

// MediaTypes returns the config media type followed by every layer media type
// of the manifest, skipping empty values.
func MediaTypes(manifest v1.Manifest) []string {
	var mediaTypes []string
	if manifest.Config.MediaType != "" {
		mediaTypes = append(mediaTypes, string(manifest.Config.MediaType))
	}

	for _, layer := range manifest.Layers {
		if layer.MediaType != "" {
			mediaTypes = append(mediaTypes, string(layer.MediaType))
		}
	}

	return mediaTypes
}
