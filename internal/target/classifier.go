package target

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/paketo-buildpacks/tally/internal"
	"github.com/paketo-buildpacks/tally/internal/convert"
	"github.com/paketo-buildpacks/tally/internal/iso"
	"github.com/paketo-buildpacks/tally/internal/scan"
)

// Archive content types extracted and scanned as directories.
var archiveTypes = []string{
	"application/x-tar",
	"application/gzip",
	"application/zip",
	"application/x-xz",
	"application/x-bzip2",
}

// Options carry the explicit values that take precedence over detection.
type Options struct {
	Kind    string
	Name    string
	Version string
}

type Classifier struct {
	options Options
	logger  scribe.Logger
}

func NewClassifier(options Options, logger scribe.Logger) Classifier {
	return Classifier{
		options: options,
		logger:  logger,
	}
}

// Classify decides what the target at path is and resolves its identity.
func (c Classifier) Classify(path string) (Target, error) {
	hint, ok, err := ParseKind(c.options.Kind)
	if err != nil {
		return Target{}, err
	}

	var target Target
	if ok {
		target, err = c.withKind(path, hint)
	} else {
		target, err = c.detect(path)
	}
	if err != nil {
		return Target{}, err
	}

	c.logger.Subprocess("Target: %s", target.path)
	c.logger.Subprocess("Kind: %s", target.kind)
	c.logger.Subprocess("Name: %s", target.name)
	c.logger.Subprocess("Version: %s", target.version)

	return target, nil
}

func (c Classifier) detect(path string) (Target, error) {
	if iso.Detect(path) {
		return c.withKind(path, ISO)
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		if IsRepository(path) {
			return c.withKind(path, Git)
		}

		if convert.DetectOrigin(path) != convert.Unknown {
			return c.withKind(path, Image)
		}

		return c.withKind(path, Directory)

	case err == nil && info.Mode().IsRegular():
		if convert.DetectOrigin(path) != convert.Unknown {
			return c.withKind(path, Image)
		}

		mtype, err := mimetype.DetectFile(path)
		if err != nil {
			return Target{}, fmt.Errorf("failed to detect content type of %s: %w", path, err)
		}

		if mimetype.EqualsAny(mtype.String(), archiveTypes...) {
			return c.withKind(path, Archive)
		}

		return c.withKind(path, File)

	case os.IsNotExist(err):
		if !IsReference(path) {
			break
		}

		return c.withKind(path, Image)

	case err != nil:
		return Target{}, fmt.Errorf("failed to stat target %s: %w", path, err)
	}

	return Target{}, internal.NewValidationError("unsupported target %q", path)
}

func (c Classifier) withKind(path string, kind Kind) (Target, error) {
	if kind == Git {
		return classifyRepository(path, c.options)
	}

	target := Target{
		path:    path,
		kind:    kind,
		name:    c.options.Name,
		version: c.options.Version,
	}

	base := filepath.Base(filepath.Clean(path))

	var name, version string
	switch kind {
	case Image:
		_, err := os.Stat(path)
		target.reference = os.IsNotExist(err)

		name, version = ImageIdentity(base)
		if target.reference {
			name, version = ImageIdentity(path)
		}

	case Directory, ISO:
		name, version = base, Undefined

	default:
		name, version = scan.TrimExtension(trimArchiveExtension(base)), Undefined
	}

	if target.name == "" {
		target.name = name
	}

	if target.version == "" {
		target.version = version
	}

	if target.name == "" {
		target.name = base
	}

	return target, nil
}
