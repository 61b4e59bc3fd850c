package scan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// A Result is the flat record produced by one scan invocation, either an
// SBOM scan or a vulnerability scan. ImagesScan, ImageVulns and Reports are
// the only nested values.
type Result struct {
	Scanner    string `json:"scanner"`
	Success    bool   `json:"success"`
	Target     string `json:"target"`
	TargetType string `json:"target_type,omitempty"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	SBOMPath   string `json:"sbom_path,omitempty"`
	VulnPath   string `json:"vuln_path,omitempty"`
	Format     string `json:"format,omitempty"`
	Digest     string `json:"digest,omitempty"`
	Distro     string `json:"distro,omitempty"`
	Stdout     string `json:"stdout,omitempty"`
	Error      string `json:"error,omitempty"`

	HasImages    bool   `json:"has_images,omitempty"`
	VolumeLabel  string `json:"volume_label,omitempty"`
	ExtractedDir string `json:"extracted_dir,omitempty"`

	Reports    map[string]Result `json:"reports,omitempty"`
	ImagesScan *Aggregate        `json:"images_scan,omitempty"`
	ImageVulns map[string]Result `json:"image_vulns,omitempty"`
}

// Failed returns a copy of the result marked as failed. The SBOM path is
// cleared so that a failed result never points at an artifact.
func (r Result) Failed(err error) Result {
	r.Success = false
	r.SBOMPath = ""
	r.VulnPath = ""
	r.Digest = ""
	r.Error = err.Error()
	return r
}

// An Aggregate is the outcome of scanning every image unit found beneath one
// parent target. Success only reflects whether enumeration succeeded; the
// outcome of each unit is recorded in its own result.
type Aggregate struct {
	Success       bool              `json:"success"`
	ScannedImages []string          `json:"scanned_images"`
	Results       map[string]Result `json:"results"`
	Error         string            `json:"error,omitempty"`
}

// NewAggregate returns a successful, empty aggregate.
func NewAggregate() Aggregate {
	return Aggregate{
		Success:       true,
		ScannedImages: []string{},
		Results:       map[string]Result{},
	}
}

// FailedAggregate returns an aggregate describing an enumeration failure.
func FailedAggregate(err error) Aggregate {
	return Aggregate{
		Success:       false,
		ScannedImages: []string{},
		Results:       map[string]Result{},
		Error:         err.Error(),
	}
}

// Add records the result for id, keeping ScannedImages in insertion order.
func (a *Aggregate) Add(id string, result Result) {
	if a.Results == nil {
		a.Results = map[string]Result{}
	}

	if _, ok := a.Results[id]; !ok {
		a.ScannedImages = append(a.ScannedImages, id)
	}

	a.Results[id] = result
}

// IDs returns the result keys in lexical order.
func (a Aggregate) IDs() []string {
	var ids []string
	for id := range a.Results {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Failures returns the ids of the results that did not succeed.
func (a Aggregate) Failures() []string {
	var failures []string
	for _, id := range a.IDs() {
		if !a.Results[id].Success {
			failures = append(failures, id)
		}
	}

	return failures
}

// WriteResults persists a Result or an Aggregate as indented JSON.
func WriteResults(path string, value interface{}) error {
	content, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(path), os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	err = os.WriteFile(path, append(content, '\n'), 0644)
	if err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	return nil
}

// ReadResults loads a Result previously written with WriteResults.
func ReadResults(path string) (Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read results: %w", err)
	}

	var result Result
	err = json.Unmarshal(content, &result)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse results: %w", err)
	}

	return result, nil
}
