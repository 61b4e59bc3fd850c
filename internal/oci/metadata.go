package oci

import (
	"strings"

	"github.com/google/go-containerregistry/pkg/v1/layout"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/paketo-buildpacks/tally/internal/scan"
	"github.com/paketo-buildpacks/tally/internal/target"
)

// Metadata reads the image name and version recorded in the index
// annotations of an OCI layout.
func Metadata(path string) (scan.Metadata, bool) {
	index, err := layout.ImageIndexFromPath(path)
	if err != nil {
		return scan.Metadata{}, false
	}

	manifest, err := index.IndexManifest()
	if err != nil {
		return scan.Metadata{}, false
	}

	for _, descriptor := range manifest.Manifests {
		ref := descriptor.Annotations[ocispec.AnnotationRefName]
		base := descriptor.Annotations[ocispec.AnnotationBaseImageName]

		switch {
		case base != "":
			name, version := target.ImageIdentity(base)
			if ref != "" && !strings.ContainsAny(ref, "/:@") {
				version = ref
			}

			return scan.Metadata{ImageName: name, ImageVersion: version}, true

		case strings.ContainsAny(ref, "/:"):
			name, version := target.ImageIdentity(ref)
			return scan.Metadata{ImageName: name, ImageVersion: version}, true
		}
	}

	return scan.Metadata{}, false
}
