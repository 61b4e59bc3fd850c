package target

import (
	"strings"

	"github.com/distribution/reference"
)

// Latest is the version of image references without a tag.
const Latest = "latest"

// Prefixes that select where an image reference is fetched from.
const (
	RegistryPrefix = "registry:"
	DaemonPrefix   = "docker:"
)

// TrimTransport removes a registry: or docker: prefix.
func TrimTransport(value string) string {
	return strings.TrimPrefix(strings.TrimPrefix(value, RegistryPrefix), DaemonPrefix)
}

// IsReference reports whether value parses as an image reference.
func IsReference(value string) bool {
	_, err := reference.ParseNormalizedNamed(trimArchiveExtension(TrimTransport(value)))
	return err == nil
}

// ImageIdentity parses an image reference such as docker.io/library/nginx:1.25
// or nginx.tar.gz into the last path segment of its name and its tag.
func ImageIdentity(value string) (string, string) {
	value = TrimTransport(value)

	var name, version string
	named, err := reference.ParseNormalizedNamed(value)
	if err == nil {
		name = reference.Path(named)
		if tagged, ok := named.(reference.Tagged); ok {
			version = tagged.Tag()
		}
	} else {
		name = value
		if i := strings.LastIndex(value, ":"); i > strings.LastIndex(value, "/") {
			name, version = value[:i], value[i+1:]
		}
	}

	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	name = trimArchiveExtension(name)
	version = trimArchiveExtension(version)

	if version == "" {
		version = Latest
	}

	return name, version
}

func trimArchiveExtension(value string) string {
	for _, ext := range []string{".tar.gz", ".tgz", ".tar"} {
		if strings.HasSuffix(value, ext) {
			return strings.TrimSuffix(value, ext)
		}
	}

	return value
}
