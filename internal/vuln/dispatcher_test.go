package vuln_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/paketo-buildpacks/packit/v2/pexec"
	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/paketo-buildpacks/tally/internal"
	internalfakes "github.com/paketo-buildpacks/tally/internal/fakes"
	"github.com/paketo-buildpacks/tally/internal/scan"
	"github.com/paketo-buildpacks/tally/internal/vuln"
	"github.com/paketo-buildpacks/tally/internal/vuln/fakes"
	"github.com/sclevine/spec"

	. "github.com/onsi/gomega"
)

func testDispatcher(t *testing.T, context spec.G, it spec.S) {
	var (
		Expect = NewWithT(t).Expect

		dir          string
		outputDir    string
		templatesDir string
		sbomPath     string
		grype        *internalfakes.Executable
		executions   []pexec.Execution
		probe        *fakes.ReleaseProbe
		options      vuln.Options
		output       *bytes.Buffer
	)

	newDispatcher := func() vuln.Dispatcher {
		return vuln.NewDispatcher(grype, probe, options, scribe.NewLogger(output))
	}

	it.Before(func() {
		var err error
		dir, err = os.MkdirTemp("", "vuln")
		Expect(err).NotTo(HaveOccurred())

		outputDir = filepath.Join(dir, "out")
		templatesDir = filepath.Join(dir, "templates")
		Expect(os.MkdirAll(templatesDir, os.ModePerm)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(templatesDir, "html.tmpl"), []byte("{{ . }}"), 0600)).To(Succeed())

		sbomPath = filepath.Join(dir, "myrepo_v2.1.0_sbom.json")
		Expect(os.WriteFile(sbomPath, []byte("{}"), 0600)).To(Succeed())

		executions = nil
		grype = &internalfakes.Executable{}
		grype.ExecuteCall.Stub = func(execution pexec.Execution) error {
			executions = append(executions, execution)
			return nil
		}

		probe = &fakes.ReleaseProbe{}
		options = vuln.Options{
			OutputDir:    outputDir,
			Formats:      []string{"json"},
			TemplatesDir: templatesDir,
		}
		output = bytes.NewBuffer(nil)
	})

	it.After(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	context("ScanSBOM", func() {
		it("runs grype against the SBOM", func() {
			result, err := newDispatcher().ScanSBOM(sbomPath, vuln.Context{Name: "myrepo", Version: "v2.1.0"})
			Expect(err).NotTo(HaveOccurred())

			vulnPath := filepath.Join(outputDir, "myrepo_v2.1.0_vuln.json")
			Expect(executions).To(HaveLen(1))
			Expect(executions[0].Args).To(Equal([]string{
				fmt.Sprintf("sbom:%s", sbomPath),
				"--name", "myrepo",
				"-o", "json",
				"--file", vulnPath,
				"--add-cpes-if-none",
			}))
			Expect(executions[0].Env).To(ContainElement("GRYPE_SEARCH_SCOPE=all-layers"))

			Expect(result.Scanner).To(Equal("grype"))
			Expect(result.Success).To(BeTrue())
			Expect(result.VulnPath).To(Equal(vulnPath))
			Expect(result.SBOMPath).To(Equal(sbomPath))
			Expect(result.Reports).To(HaveKey("json"))
		})

		it("renders template formats from the templates directory", func() {
			options.Formats = []string{"json", "html"}

			result, err := newDispatcher().ScanSBOM(sbomPath, vuln.Context{Name: "myrepo", Version: "v2.1.0"})
			Expect(err).NotTo(HaveOccurred())

			Expect(executions).To(HaveLen(2))
			Expect(executions[1].Args).To(Equal([]string{
				fmt.Sprintf("sbom:%s", sbomPath),
				"--name", "myrepo",
				"--template", filepath.Join(templatesDir, "html.tmpl"),
				"-o", "template",
				"--file", filepath.Join(outputDir, "myrepo_v2.1.0_vuln.html"),
				"--add-cpes-if-none",
			}))
			Expect(result.Reports["html"].Success).To(BeTrue())
		})

		it("records a missing template as a failed format", func() {
			options.Formats = []string{"json", "csv"}

			result, err := newDispatcher().ScanSBOM(sbomPath, vuln.Context{Name: "myrepo", Version: "v2.1.0"})
			Expect(err).NotTo(HaveOccurred())

			Expect(executions).To(HaveLen(1))
			Expect(result.Success).To(BeFalse())
			Expect(result.Reports["json"].Success).To(BeTrue())
			Expect(result.Reports["csv"].Success).To(BeFalse())
			Expect(result.Reports["csv"].Error).To(ContainSubstring("template file not found"))
			Expect(result.VulnPath).To(Equal(filepath.Join(outputDir, "myrepo_v2.1.0_vuln.json")))
		})

		it("uses the custom template for the template format", func() {
			options.Formats = []string{"template"}
			options.TemplateFile = "/templates/custom.tmpl"

			_, err := newDispatcher().ScanSBOM(sbomPath, vuln.Context{Name: "myrepo", Version: "v2.1.0"})
			Expect(err).NotTo(HaveOccurred())
			Expect(executions[0].Args).To(ContainElements("--template", "/templates/custom.tmpl"))
		})

		it("names merged reports with their own suffix", func() {
			result, err := newDispatcher().ScanSBOM(sbomPath, vuln.Context{Name: "myrepo", Version: "v2.1.0", Suffix: "merged_vuln"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.VulnPath).To(Equal(filepath.Join(outputDir, "myrepo_v2.1.0_merged_vuln.json")))
		})

		it("falls back to the SBOM basename", func() {
			result, err := newDispatcher().ScanSBOM(sbomPath, vuln.Context{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.VulnPath).To(Equal(filepath.Join(outputDir, "myrepo_v2.1.0_sbom_vuln.json")))
		})

		it("splits an explicit output file across formats", func() {
			options.Formats = []string{"json", "sarif"}

			_, err := newDispatcher().ScanSBOM(sbomPath, vuln.Context{OutputFile: "report.out"})
			Expect(err).NotTo(HaveOccurred())
			Expect(executions[0].Args).To(ContainElement(filepath.Join(outputDir, "report_json.out")))
			Expect(executions[1].Args).To(ContainElement(filepath.Join(outputDir, "report_sarif.out")))
		})

		context("distro enrichment", func() {
			it("prefers the configured distro", func() {
				options.Distro = "ubuntu:22.04"
				probe.ReleaseCall.Returns.Distro = vuln.Distro{Name: "alpine", Version: "3.19"}
				probe.ReleaseCall.Returns.Bool = true

				result, err := newDispatcher().ScanSBOM(sbomPath, vuln.Context{Target: "/pkgs/bash-5.1.8-6.el9.x86_64.rpm"})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Distro).To(Equal("ubuntu:22.04"))
				Expect(executions[0].Args).To(ContainElements("--distro", "ubuntu:22.04"))
				Expect(probe.ReleaseCall.CallCount).To(Equal(0))
			})

			it("derives the distro from an RPM target", func() {
				result, err := newDispatcher().ScanSBOM(sbomPath, vuln.Context{Target: "/pkgs/openssl-1.1.1k-9.el8_7.x86_64.rpm"})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Distro).To(Equal("rhel:8"))
				Expect(executions[0].Args).To(ContainElements("--distro", "rhel:8"))
			})

			it("falls back to the release recorded in the SBOM", func() {
				probe.ReleaseCall.Returns.Distro = vuln.Distro{Name: "alpine", Version: "3.19"}
				probe.ReleaseCall.Returns.Bool = true

				result, err := newDispatcher().ScanSBOM(sbomPath, vuln.Context{Target: "/src/myrepo"})
				Expect(err).NotTo(HaveOccurred())
				Expect(probe.ReleaseCall.Receives.SbomPath).To(Equal(sbomPath))
				Expect(result.Distro).To(Equal("alpine:3.19"))
			})

			it("omits the distro when none can be found", func() {
				result, err := newDispatcher().ScanSBOM(sbomPath, vuln.Context{})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Distro).To(BeEmpty())
				Expect(executions[0].Args).NotTo(ContainElement("--distro"))
			})
		})

		context("when grype fails", func() {
			it.Before(func() {
				grype.ExecuteCall.Stub = func(execution pexec.Execution) error {
					_, _ = fmt.Fprint(execution.Stderr, "db update failed")
					return errors.New("exit status 1")
				}
			})

			it("records the failure", func() {
				result, err := newDispatcher().ScanSBOM(sbomPath, vuln.Context{Name: "myrepo"})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Success).To(BeFalse())
				Expect(result.Reports["json"].Error).To(ContainSubstring("db update failed"))
				Expect(result.Reports["json"].VulnPath).To(BeEmpty())
				Expect(result.SBOMPath).To(BeEmpty())
				Expect(result.Target).To(Equal(sbomPath))
			})
		})

		context("failure cases", func() {
			context("when the SBOM does not exist", func() {
				it("returns a validation error", func() {
					_, err := newDispatcher().ScanSBOM(filepath.Join(dir, "missing.json"), vuln.Context{})

					var validation internal.ValidationError
					Expect(errors.As(err, &validation)).To(BeTrue())
					Expect(executions).To(BeEmpty())
				})
			})

			context("when grype is not installed", func() {
				it.Before(func() {
					grype.ExecuteCall.Stub = nil
					grype.ExecuteCall.Returns.Error = exec.ErrNotFound
				})

				it("returns a missing dependency error", func() {
					_, err := newDispatcher().ScanSBOM(sbomPath, vuln.Context{})
					Expect(err).To(MatchError(internal.MissingDependencyError("grype")))
				})
			})
		})
	})

	context("ScanResults", func() {
		it("fans out over the nested image SBOMs", func() {
			nginx := filepath.Join(dir, "nginx_1.25_sbom.json")
			Expect(os.WriteFile(nginx, []byte("{}"), 0600)).To(Succeed())

			aggregate := scan.NewAggregate()
			aggregate.Add("nginx:1.25", scan.Result{Success: true, Name: "nginx", Version: "1.25", SBOMPath: nginx})
			aggregate.Add("redis:7.2", scan.Result{Success: true, Name: "redis", Version: "7.2", SBOMPath: filepath.Join(dir, "missing.json")})
			aggregate.Add("broken:1.0", scan.Result{Success: false, Name: "broken", Version: "1.0"})

			result, err := newDispatcher().ScanResults(scan.Result{
				Name:       "myiso",
				Version:    "9.2",
				SBOMPath:   sbomPath,
				ImagesScan: &aggregate,
			}, vuln.Context{})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.VulnPath).To(Equal(filepath.Join(outputDir, "myiso_9.2_vuln.json")))
			Expect(result.ImageVulns).To(HaveLen(1))
			Expect(result.ImageVulns["nginx:1.25"].VulnPath).To(Equal(filepath.Join(outputDir, "nginx_1.25_vuln.json")))
			Expect(executions).To(HaveLen(2))
		})
	})
}
