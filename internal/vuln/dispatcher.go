package vuln

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paketo-buildpacks/packit/v2/fs"
	"github.com/paketo-buildpacks/packit/v2/pexec"
	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/paketo-buildpacks/tally/internal"
	"github.com/paketo-buildpacks/tally/internal/scan"
)

// TemplateFormat is the format that renders the configured custom template.
const TemplateFormat = "template"

// Formats rendered with a template from the templates directory.
var templateFormats = map[string]bool{
	"csv":   true,
	"html":  true,
	"junit": true,
	"table": true,
}

// GrypeEnvironment is appended to the process environment for every grype
// invocation.
var GrypeEnvironment = []string{
	"GRYPE_SEARCH_SCOPE=all-layers",
	"GRYPE_LOG_LEVEL=info",
	"GRYPE_PRETTY=true",
}

type Options struct {
	OutputDir    string
	Formats      []string
	TemplatesDir string
	TemplateFile string
	Distro       string
}

// A Context carries the identity of the artifact an SBOM was generated
// from.
type Context struct {
	Name       string
	Version    string
	Metadata   scan.Metadata
	OutputFile string
	Suffix     string

	// Target is the originally scanned artifact, used to derive the distro
	// of single packages.
	Target string
}

// A Dispatcher runs grype against SBOM artifacts.
type Dispatcher struct {
	grype   internal.Executable
	probe   ReleaseProbe
	options Options
	logger  scribe.Logger
}

func NewDispatcher(grype internal.Executable, probe ReleaseProbe, options Options, logger scribe.Logger) Dispatcher {
	if len(options.Formats) == 0 {
		options.Formats = []string{"json"}
	}

	return Dispatcher{
		grype:   grype,
		probe:   probe,
		options: options,
		logger:  logger,
	}
}

// ScanSBOM scans one SBOM once per configured format. Per-format outcomes
// are recorded in the Reports of the returned result.
func (d Dispatcher) ScanSBOM(sbomPath string, context Context) (scan.Result, error) {
	exists, err := fs.Exists(sbomPath)
	if err != nil {
		return scan.Result{}, err
	}

	if !exists {
		return scan.Result{}, internal.NewValidationError("SBOM file %s does not exist", sbomPath)
	}

	if context.Suffix == "" {
		context.Suffix = "vuln"
	}

	result := scan.Result{
		Scanner:  "grype",
		Target:   sbomPath,
		Name:     context.Name,
		Version:  context.Version,
		SBOMPath: sbomPath,
		Reports:  map[string]scan.Result{},
	}

	distro, ok := d.resolveDistro(sbomPath, context)
	if ok {
		result.Distro = distro.String()
		d.logger.Action("Using distro %s", distro)
	}

	var failures []string
	for _, format := range d.options.Formats {
		report, err := d.scanFormat(sbomPath, format, context, result.Distro)
		if err != nil {
			return scan.Result{}, err
		}

		result.Reports[format] = report
		if !report.Success {
			failures = append(failures, fmt.Sprintf("%s: %s", format, report.Error))
			continue
		}

		if result.VulnPath == "" {
			result.VulnPath = report.VulnPath
		}
	}

	result.Success = len(failures) == 0
	if !result.Success {
		result.Error = strings.Join(failures, "; ")
		result.SBOMPath = ""
	}

	return result, nil
}

// ScanResults scans the top-level SBOM of a scan result and fans out one scan
// per nested image SBOM into ImageVulns.
func (d Dispatcher) ScanResults(result scan.Result, context Context) (scan.Result, error) {
	if context.Name == "" {
		context.Name = result.Name
		context.Version = result.Version
	}

	if context.Target == "" {
		context.Target = result.Target
	}

	vulns := scan.Result{
		Scanner: "grype",
		Success: true,
		Target:  result.Target,
		Name:    context.Name,
		Version: context.Version,
	}

	if result.SBOMPath != "" {
		var err error
		vulns, err = d.ScanSBOM(result.SBOMPath, context)
		if err != nil {
			return scan.Result{}, err
		}
	}

	if result.ImagesScan != nil {
		aggregate, err := d.ScanAggregate(*result.ImagesScan)
		if err != nil {
			return scan.Result{}, err
		}

		vulns.ImageVulns = aggregate.Results
	}

	return vulns, nil
}

// ScanAggregate scans the SBOM of every unit in the aggregate. Units without
// an SBOM are skipped.
func (d Dispatcher) ScanAggregate(aggregate scan.Aggregate) (scan.Aggregate, error) {
	vulns := scan.NewAggregate()
	for _, id := range aggregate.IDs() {
		unit := aggregate.Results[id]
		if unit.SBOMPath == "" {
			continue
		}

		if exists, _ := fs.Exists(unit.SBOMPath); !exists {
			d.logger.Subprocess("Skipping %s: SBOM %s not found", id, unit.SBOMPath)
			continue
		}

		d.logger.Subprocess("%s", id)
		result, err := d.ScanSBOM(unit.SBOMPath, Context{Name: unit.Name, Version: unit.Version})
		if err != nil {
			return scan.Aggregate{}, err
		}

		vulns.Add(id, result)
	}

	return vulns, nil
}

func (d Dispatcher) resolveDistro(sbomPath string, context Context) (Distro, bool) {
	if distro, ok := ParseDistro(d.options.Distro); ok {
		return distro, true
	}

	if context.Target != "" {
		if distro, ok := DistroFromRPM(context.Target); ok {
			return distro, true
		}
	}

	if d.probe != nil {
		distro, ok, err := d.probe.Release(sbomPath)
		if err != nil {
			d.logger.Action("Could not determine distro from %s: %s", sbomPath, err)
			return Distro{}, false
		}

		return distro, ok
	}

	return Distro{}, false
}

func (d Dispatcher) scanFormat(sbomPath, format string, context Context, distro string) (scan.Result, error) {
	outputFile := scan.OutputFile(scan.OutputRequest{
		Dir:      d.options.OutputDir,
		Override: d.override(context.OutputFile, format),
		Name:     context.Name,
		Version:  context.Version,
		Metadata: context.Metadata,
		Target:   sbomPath,
		Suffix:   context.Suffix,
		Format:   format,
	})

	report := scan.Result{
		Scanner: "grype",
		Target:  sbomPath,
		Name:    context.Name,
		Version: context.Version,
		Format:  format,
		Distro:  distro,
	}

	args := []string{fmt.Sprintf("sbom:%s", sbomPath)}
	if distro != "" {
		args = append(args, "--distro", distro)
	}

	if context.Name != "" {
		args = append(args, "--name", context.Name)
	}

	switch {
	case templateFormats[format]:
		template := filepath.Join(d.options.TemplatesDir, fmt.Sprintf("%s.tmpl", format))
		if exists, _ := fs.Exists(template); !exists {
			return report.Failed(fmt.Errorf("template file not found: %s", template)), nil
		}

		args = append(args, "--template", template, "-o", TemplateFormat)

	case format == TemplateFormat:
		if d.options.TemplateFile == "" {
			return report.Failed(errors.New("no template file configured")), nil
		}

		args = append(args, "--template", d.options.TemplateFile, "-o", TemplateFormat)

	default:
		args = append(args, "-o", format)
	}

	args = append(args, "--file", outputFile, "--add-cpes-if-none")

	err := os.MkdirAll(filepath.Dir(outputFile), os.ModePerm)
	if err != nil {
		return scan.Result{}, fmt.Errorf("failed to create vulnerability output directory: %w", err)
	}

	d.logger.Action("Scanning %s for vulnerabilities (%s)", sbomPath, format)

	stdout := bytes.NewBuffer(nil)
	stderr := bytes.NewBuffer(nil)
	err = d.grype.Execute(pexec.Execution{
		Args:   args,
		Env:    append(os.Environ(), GrypeEnvironment...),
		Stdout: stdout,
		Stderr: stderr,
	})
	report.Stdout = stdout.String()
	if err != nil {
		if internal.IsMissingExecutable(err) {
			return scan.Result{}, internal.MissingDependencyError("grype")
		}

		return report.Failed(fmt.Errorf("grype failed: %w: %s", err, stderr)), nil
	}

	report.Success = true
	report.VulnPath = outputFile
	d.logger.Action("Vulnerability report written to %s", outputFile)

	return report, nil
}

// override keeps per-format reports apart when a single output file is
// configured for several formats.
func (d Dispatcher) override(outputFile, format string) string {
	if outputFile == "" || len(d.options.Formats) < 2 {
		return outputFile
	}

	ext := filepath.Ext(outputFile)
	return fmt.Sprintf("%s_%s%s", strings.TrimSuffix(outputFile, ext), format, ext)
}
