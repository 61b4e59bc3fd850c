package scan

import (
	"fmt"
	"path/filepath"
	"strings"
)

var extensions = map[string]string{
	"json":           "json",
	"table":          "txt",
	"sarif":          "sarif",
	"html":           "html",
	"cyclonedx":      "xml",
	"cyclonedx-json": "json",
	"spdx-json":      "json",
	"junit":          "xml",
	"csv":            "csv",
}

// Extension returns the file extension for an output format. Unknown formats
// use json.
func Extension(format string) string {
	if ext, ok := extensions[format]; ok {
		return ext
	}

	return "json"
}

// Metadata is the image identity found by structural inspection, used when
// no explicit name is available.
type Metadata struct {
	ImageName    string `json:"image_name,omitempty"`
	ImageVersion string `json:"image_version,omitempty"`
}

// An OutputRequest holds everything needed to name an output file.
type OutputRequest struct {
	Dir      string
	Override string
	Name     string
	Version  string
	Metadata Metadata
	Target   string
	Suffix   string
	Format   string
}

// OutputFile resolves the output path using the priority chain: explicit
// override, then name and version, then image metadata, then the basename of
// the target.
func OutputFile(request OutputRequest) string {
	if request.Override != "" {
		if filepath.IsAbs(request.Override) {
			return request.Override
		}

		return filepath.Join(request.Dir, request.Override)
	}

	ext := Extension(request.Format)

	var stem string
	switch {
	case request.Name != "" && request.Version != "":
		stem = fmt.Sprintf("%s_%s", FileSafe(request.Name), FileSafe(request.Version))
	case request.Name != "":
		stem = FileSafe(request.Name)
	case request.Metadata.ImageName != "":
		version := request.Metadata.ImageVersion
		if version == "" {
			version = "latest"
		}
		stem = fmt.Sprintf("%s_%s", FileSafe(request.Metadata.ImageName), FileSafe(version))
	default:
		stem = TrimExtension(filepath.Base(filepath.Clean(request.Target)))
	}

	return filepath.Join(request.Dir, fmt.Sprintf("%s_%s.%s", stem, request.Suffix, ext))
}

// FileSafe replaces path separators in a name so it can be used as a single
// path element.
func FileSafe(name string) string {
	return strings.NewReplacer("/", "-", "\\", "-").Replace(name)
}

// TrimExtension removes the final extension of a file name, keeping hidden
// file names intact.
func TrimExtension(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		return name
	}

	return strings.TrimSuffix(name, ext)
}
