package vuln

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/paketo-buildpacks/packit/v2/fs"
)

// A Distro is the Linux distribution context passed to grype.
type Distro struct {
	Name    string
	Version string
}

func (d Distro) String() string {
	return fmt.Sprintf("%s:%s", d.Name, d.Version)
}

// ParseDistro parses a name:version pair.
func ParseDistro(value string) (Distro, bool) {
	name, version, found := strings.Cut(strings.TrimSpace(value), ":")
	if !found || name == "" || version == "" {
		return Distro{}, false
	}

	return Distro{Name: name, Version: version}, true
}

var rpmPattern = regexp.MustCompile(`.*[.-](?P<os_marker>el|fc|sles)(?P<version>\d+)[._-]?.*\.rpm$`)

// Only markers listed here produce a distro. Fedora and SLES packages are
// recognized but grype is not given a distro for them.
var markers = map[string]string{
	"el": "rhel",
}

// DistroFromRPM derives the distro from an RPM file name such as
// openssl-3.0.7-18.el9_2.x86_64.rpm. When the file exists its content must
// be an RPM package.
func DistroFromRPM(path string) (Distro, bool) {
	matches := rpmPattern.FindStringSubmatch(filepath.Base(path))
	if matches == nil {
		return Distro{}, false
	}

	if exists, _ := fs.Exists(path); exists {
		mtype, err := mimetype.DetectFile(path)
		if err != nil || !mtype.Is("application/x-rpm") {
			return Distro{}, false
		}
	}

	name, ok := markers[matches[rpmPattern.SubexpIndex("os_marker")]]
	if !ok {
		return Distro{}, false
	}

	return Distro{Name: name, Version: matches[rpmPattern.SubexpIndex("version")]}, true
}

//go:generate faux --interface ReleaseProbe --output fakes/release_probe.go
type ReleaseProbe interface {
	Release(sbomPath string) (Distro, bool, error)
}
