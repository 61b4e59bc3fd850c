package catalog

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/anchore/syft/syft/format"
	"github.com/anchore/syft/syft/linux"
	"github.com/anchore/syft/syft/sbom"
	psbom "github.com/paketo-buildpacks/packit/v2/sbom"
	"github.com/paketo-buildpacks/tally/internal/vuln"
)

var mediaTypes = map[string]psbom.Format{
	"cyclonedx-json": psbom.Format("application/vnd.cyclonedx+json"),
	"spdx-json":      psbom.Format("application/spdx+json"),
	"syft-json":      psbom.Format("application/vnd.syft+json"),
	"json":           psbom.Format("application/vnd.syft+json"),
}

// MediaType returns the SBOM media type written for an output format.
func MediaType(outputFormat string) (psbom.Format, error) {
	mediaType, ok := mediaTypes[outputFormat]
	if !ok {
		return "", fmt.Errorf("output format %q is not supported by the builtin engine", outputFormat)
	}

	return mediaType, nil
}

// SBOM wraps a syft SBOM together with the Linux release it recorded.
type SBOM struct {
	sbom   sbom.SBOM
	Distro vuln.Distro
}

func NewSBOM(s sbom.SBOM) SBOM {
	var release linux.Release
	if s.Artifacts.LinuxDistribution != nil {
		release = *s.Artifacts.LinuxDistribution
	}

	return SBOM{
		sbom: s,
		Distro: vuln.Distro{
			Name:    release.ID,
			Version: release.VersionID,
		},
	}
}

// Packages returns the sorted names of the packages in the SBOM.
func (s SBOM) Packages() []string {
	var packages []string
	if s.sbom.Artifacts.Packages == nil {
		return packages
	}

	for p := range s.sbom.Artifacts.Packages.Enumerate() {
		packages = append(packages, p.Name)
	}

	sort.Strings(packages)

	return packages
}

// Encode writes the SBOM in the given output format.
func (s SBOM) Encode(outputFormat string, w io.Writer) error {
	mediaType, err := MediaType(outputFormat)
	if err != nil {
		return err
	}

	_, err = io.Copy(w, psbom.NewFormattedReader(psbom.NewSBOM(s.sbom), mediaType))
	if err != nil {
		return fmt.Errorf("failed to encode SBOM as %s: %w", outputFormat, err)
	}

	return nil
}

// Decode reads an SBOM document in any format syft understands.
func Decode(path string) (s SBOM, err error) {
	file, err := os.Open(path)
	if err != nil {
		return SBOM{}, fmt.Errorf("failed to open SBOM: %w", err)
	}
	defer func() {
		if err2 := file.Close(); err2 != nil && err == nil {
			err = err2
		}
	}()

	decoded, _, _, err := format.Decode(file)
	if err != nil {
		return SBOM{}, fmt.Errorf("failed to decode SBOM %s: %w", path, err)
	}

	if decoded == nil {
		return SBOM{}, fmt.Errorf("failed to decode SBOM %s: unrecognized format", path)
	}

	return NewSBOM(*decoded), err // err should be nil here, but return err to catch deferred error
}

// A ReleaseProbe reads the Linux release recorded in SBOM documents.
type ReleaseProbe struct{}

func (ReleaseProbe) Release(path string) (vuln.Distro, bool, error) {
	s, err := Decode(path)
	if err != nil {
		return vuln.Distro{}, false, err
	}

	if s.Distro.Name == "" || s.Distro.Version == "" {
		return vuln.Distro{}, false, nil
	}

	return s.Distro, true, nil
}
