package target

import (
	"fmt"
	"strings"

	"github.com/paketo-buildpacks/tally/internal"
)

// A Kind is one of the closed set of target kinds.
type Kind string

const (
	Git       Kind = "git"
	Directory Kind = "directory"
	ISO       Kind = "iso"
	Image     Kind = "image"
	Archive   Kind = "archive"
	File      Kind = "file"
)

// Kinds returns every target kind.
func Kinds() []Kind {
	return []Kind{Git, Directory, ISO, Image, Archive, File}
}

// ParseKind parses a kind hint. The empty string means no hint.
func ParseKind(value string) (Kind, bool, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", false, nil
	}

	if value == "dir" {
		return Directory, true, nil
	}

	for _, kind := range Kinds() {
		if string(kind) == value {
			return kind, true, nil
		}
	}

	return "", false, internal.NewValidationError("unsupported target type %q", value)
}

func (k Kind) String() string {
	return string(k)
}

// A Target is a classified scan target. It is built once by a Classifier
// and not modified afterwards; WithIdentity returns a refined copy.
type Target struct {
	path      string
	kind      Kind
	name      string
	version   string
	reference bool
}

func (t Target) Path() string    { return t.path }
func (t Target) Kind() Kind      { return t.kind }
func (t Target) Name() string    { return t.name }
func (t Target) Version() string { return t.version }

// Reference reports whether the target is an image reference rather than a
// path on disk.
func (t Target) Reference() bool { return t.reference }

// WithIdentity returns a copy of the target with the given name and version.
// Empty values keep the current identity.
func (t Target) WithIdentity(name, version string) Target {
	if name != "" {
		t.name = name
	}

	if version != "" {
		t.version = version
	}

	return t
}

func (t Target) String() string {
	return fmt.Sprintf("%s %s (%s:%s)", t.kind, t.path, t.name, t.version)
}
