package publish

import (
	"context"
	"path"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/paketo-buildpacks/packit/v2/fs"
	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/paketo-buildpacks/tally/internal/scan"
)

var contentTypes = map[string]string{
	".json":  "application/json",
	".sarif": "application/sarif+json",
	".xml":   "application/xml",
	".html":  "text/html",
	".csv":   "text/csv",
	".txt":   "text/plain",
}

// ContentType returns the content type of an artifact by its extension.
func ContentType(file string) string {
	if contentType, ok := contentTypes[filepath.Ext(file)]; ok {
		return contentType
	}

	return "application/octet-stream"
}

// Key returns the object key of an artifact: {prefix}/{runID}/{basename}.
func Key(prefix, runID, file string) string {
	return path.Join(prefix, runID, filepath.Base(file))
}

// Artifacts returns every SBOM and vulnerability report referenced by the
// results, sorted and without duplicates.
func Artifacts(results ...scan.Result) []string {
	set := map[string]struct{}{}

	var collect func(result scan.Result)
	collect = func(result scan.Result) {
		for _, p := range []string{result.SBOMPath, result.VulnPath} {
			if p != "" {
				set[p] = struct{}{}
			}
		}

		for _, report := range result.Reports {
			collect(report)
		}

		for _, nested := range result.ImageVulns {
			collect(nested)
		}

		if result.ImagesScan != nil {
			for _, nested := range result.ImagesScan.Results {
				collect(nested)
			}
		}
	}

	for _, result := range results {
		collect(result)
	}

	var paths []string
	for p := range set {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// A Publisher uploads artifacts of one run under a shared run id.
type Publisher struct {
	store  Store
	prefix string
	runID  string
	logger scribe.Logger
}

func NewPublisher(store Store, prefix string, logger scribe.Logger) Publisher {
	return Publisher{
		store:  store,
		prefix: prefix,
		runID:  uuid.NewString(),
		logger: logger,
	}
}

func (p Publisher) RunID() string {
	return p.runID
}

// Publish uploads every existing file and returns the keys written.
func (p Publisher) Publish(ctx context.Context, files []string) ([]string, error) {
	var keys []string
	for _, file := range files {
		if exists, _ := fs.Exists(file); !exists {
			p.logger.Subprocess("Skipping %s: file not found", file)
			continue
		}

		key := Key(p.prefix, p.runID, file)
		p.logger.Subprocess("Uploading %s to %s", file, key)

		err := p.store.Upload(ctx, file, key, ContentType(file))
		if err != nil {
			return nil, err
		}

		keys = append(keys, key)
	}

	return keys, nil
}
