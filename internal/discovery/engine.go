package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/paketo-buildpacks/tally/internal"
)

// ImagesDir is the conventional directory that holds images beneath a scan
// root.
const ImagesDir = "images"

//go:generate faux --interface MediaTypeChecker --output fakes/media_type_checker.go
type MediaTypeChecker interface {
	CheckExcludedMediaTypes(path string, excluded []string) (bool, error)
}

// An Engine enumerates the images beneath a root directory by trying an
// ordered list of strategies and keeping the first non-empty result.
type Engine struct {
	checker    MediaTypeChecker
	excluded   []string
	strategies []Strategy
	logger     scribe.Logger
}

func NewEngine(checker MediaTypeChecker, excluded []string, logger scribe.Logger) Engine {
	return Engine{
		checker:    checker,
		excluded:   excluded,
		strategies: DefaultStrategies(),
		logger:     logger,
	}
}

func (e Engine) WithStrategies(strategies ...Strategy) Engine {
	e.strategies = strategies
	return e
}

// ImageRoot returns <root>/images when it exists and root otherwise.
func ImageRoot(root string) string {
	images := filepath.Join(root, ImagesDir)
	if info, err := os.Stat(images); err == nil && info.IsDir() {
		return images
	}

	return root
}

// Discover returns the sorted image units found beneath root. A unit whose
// media types cannot be inspected is skipped. An error is only returned when
// the image root itself cannot be enumerated or skopeo is not installed.
func (e Engine) Discover(root, sourceName string) ([]ImageUnit, error) {
	imageRoot := ImageRoot(root)

	info, err := os.Stat(imageRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read image directory: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("failed to read image directory: %s is not a directory", imageRoot)
	}

	var candidates []Candidate
	for _, strategy := range e.strategies {
		candidates, err = strategy.Find(imageRoot, sourceName)
		if err != nil {
			return nil, fmt.Errorf("failed to discover images in %s: %w", imageRoot, err)
		}

		if len(candidates) > 0 {
			e.logger.Subprocess("Found %d image(s) using the %s layout", len(candidates), strategy.Name)
			break
		}
	}

	var units []ImageUnit
	for _, candidate := range candidates {
		excluded, err := e.checker.CheckExcludedMediaTypes(candidate.Path, e.excluded)
		if err != nil {
			var missing internal.MissingDependencyError
			if errors.As(err, &missing) {
				return nil, err
			}

			e.logger.Action("Skipping %s:%s: %s", candidate.Name, candidate.Version, err)
			continue
		}

		units = append(units, ImageUnit{
			Name:     candidate.Name,
			Version:  candidate.Version,
			Path:     candidate.Path,
			Source:   sourceName,
			Excluded: excluded,
		})
	}

	Sort(units)

	for _, unit := range units {
		if unit.Excluded {
			e.logger.Action("%s (excluded media type, scanned as a directory)", unit.ID())
		} else {
			e.logger.Action("%s", unit.ID())
		}
	}

	return units, nil
}
