package iso

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Unknown is the version used when the volume label carries no digits.
const Unknown = "unknown"

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+\.\d+\.\d+`),
	regexp.MustCompile(`\d+\.\d+`),
	regexp.MustCompile(`\s+\d+$`),
}

var (
	versionPattern = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)
	digitPattern   = regexp.MustCompile(`\d+`)
)

// NameFromLabel returns the product name encoded in a volume label, e.g.
// "Rocky 9.2 x86_64" yields "rocky".
func NameFromLabel(label string) (string, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", false
	}

	for _, pattern := range namePatterns {
		loc := pattern.FindStringIndex(label)
		if loc == nil {
			continue
		}

		prefix := strings.Trim(strings.TrimSpace(label[:loc[0]]), "-_")
		if prefix != "" {
			return normalize(prefix), true
		}
	}

	return normalize(label), true
}

// VersionFromLabel returns the last dotted version in the label, the last
// run of digits when there is none, or Unknown.
func VersionFromLabel(label string) string {
	if matches := versionPattern.FindAllString(label, -1); len(matches) > 0 {
		return matches[len(matches)-1]
	}

	if matches := digitPattern.FindAllString(label, -1); len(matches) > 0 {
		return matches[len(matches)-1]
	}

	return Unknown
}

// Identity resolves the name and version of an ISO. Explicit values win over
// the label; the file stem is the last resort for the name.
func Identity(path, label, name, version string) (string, string) {
	if name == "" {
		if n, ok := NameFromLabel(label); ok {
			name = n
		} else {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
	}

	if version == "" {
		version = VersionFromLabel(label)
	}

	return name, version
}

// OutputName is the SBOM output file override used for the extracted tree.
func OutputName(name, version string) string {
	return fmt.Sprintf("iso_%s_%s", name, version)
}

func normalize(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), "-")
}
