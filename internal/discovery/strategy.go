package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/paketo-buildpacks/tally/internal/convert"
)

// A Candidate is an image version found by a Strategy before its media types
// have been checked.
type Candidate struct {
	Name    string
	Version string
	Path    string
}

// A Strategy looks for image versions beneath an image root using one layout
// convention. It returns an empty slice when the convention does not match.
type Strategy struct {
	Name string
	Find func(imageRoot, sourceName string) ([]Candidate, error)
}

// DefaultStrategies returns the layout conventions in the order they are
// tried.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "nested", Find: NestedVersions},
		{Name: "direct", Find: DirectVersions},
		{Name: "recursive", Find: RecursiveVersions},
	}
}

// NestedVersions matches the <root>/<name>/<version>/ layout. Directories
// that are image layouts themselves are left to the other strategies.
func NestedVersions(imageRoot, _ string) ([]Candidate, error) {
	names, err := subdirectories(imageRoot)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, name := range names {
		path := filepath.Join(imageRoot, name)
		if isImageLayout(path) {
			continue
		}

		versions, err := subdirectories(path)
		if err != nil {
			continue
		}

		for _, version := range versions {
			candidates = append(candidates, Candidate{
				Name:    name,
				Version: version,
				Path:    filepath.Join(path, version),
			})
		}
	}

	return candidates, nil
}

// DirectVersions matches a root whose subdirectories are versions of a single
// image named after the root itself. Only version-like directory names are
// considered.
func DirectVersions(imageRoot, _ string) ([]Candidate, error) {
	versions, err := subdirectories(imageRoot)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(filepath.Clean(imageRoot))

	var candidates []Candidate
	for _, version := range versions {
		if !IsVersionLike(version) {
			continue
		}

		candidates = append(candidates, Candidate{
			Name:    name,
			Version: version,
			Path:    filepath.Join(imageRoot, version),
		})
	}

	return candidates, nil
}

// RecursiveVersions walks the whole tree below the image root. Every
// directory that has subdirectories is treated as an image whose
// subdirectories are its versions. Image layouts are not descended into.
// Names are qualified with the source name.
func RecursiveVersions(imageRoot, sourceName string) ([]Candidate, error) {
	var candidates []Candidate
	err := filepath.WalkDir(imageRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == imageRoot {
				return err
			}

			return filepath.SkipDir
		}

		if !entry.IsDir() {
			return nil
		}

		if path != imageRoot && isImageLayout(path) {
			return filepath.SkipDir
		}

		versions, err := subdirectories(path)
		if err != nil {
			return filepath.SkipDir
		}

		for _, version := range versions {
			candidates = append(candidates, Candidate{
				Name:    fmt.Sprintf("%s:%s", sourceName, filepath.Base(path)),
				Version: version,
				Path:    filepath.Join(path, version),
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return candidates, nil
}

// IsVersionLike reports whether a directory name looks like a version: it
// starts with "v" or contains a digit.
func IsVersionLike(name string) bool {
	if strings.HasPrefix(name, "v") {
		return true
	}

	return strings.IndexFunc(name, unicode.IsDigit) >= 0
}

func isImageLayout(dir string) bool {
	return convert.DetectOrigin(dir) != convert.Unknown
}

func subdirectories(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	return names, nil
}
