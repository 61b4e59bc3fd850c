package convert

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/go-archive"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/paketo-buildpacks/packit/v2/fs"
)

// DockerManifestFile is the manifest written at the root of a Docker (legacy)
// image layout.
const DockerManifestFile = "manifest.json"

// An Origin identifies the on-disk representation of an image.
type Origin string

const (
	Docker  Origin = "docker"
	OCI     Origin = "oci"
	Unknown Origin = "unknown"
)

// DetectOrigin inspects a directory or a single-file archive and reports
// which image layout it holds.
func DetectOrigin(path string) Origin {
	info, err := os.Stat(path)
	if err != nil {
		return Unknown
	}

	if info.IsDir() {
		if exists, _ := fs.Exists(filepath.Join(path, ocispec.ImageLayoutFile)); exists {
			return OCI
		}

		if exists, _ := fs.Exists(filepath.Join(path, DockerManifestFile)); exists {
			return Docker
		}

		return Unknown
	}

	origin, err := archiveOrigin(path)
	if err != nil {
		return Unknown
	}

	return origin
}

func archiveOrigin(path string) (origin Origin, err error) {
	file, err := os.Open(path)
	if err != nil {
		return Unknown, err
	}
	defer func() {
		if err2 := file.Close(); err2 != nil && err == nil {
			err = err2
		}
	}()

	stream, err := archive.DecompressStream(file)
	if err != nil {
		return Unknown, err
	}
	defer stream.Close()

	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Unknown, nil
			}

			return Unknown, err
		}

		name := strings.TrimPrefix(hdr.Name, "./")
		switch {
		case name == DockerManifestFile:
			return Docker, nil
		case strings.HasPrefix(name, ocispec.ImageBlobsDir+"/"):
			return OCI, nil
		}
	}
}
