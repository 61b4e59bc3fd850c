package scan_test

import (
	"errors"
	"fmt"
	"os/exec"
	"testing"

	"github.com/paketo-buildpacks/packit/v2/pexec"
	"github.com/paketo-buildpacks/tally/internal"
	"github.com/paketo-buildpacks/tally/internal/fakes"
	"github.com/paketo-buildpacks/tally/internal/scan"
	"github.com/sclevine/spec"

	. "github.com/onsi/gomega"
)

func testSyftCLI(t *testing.T, context spec.G, it spec.S) {
	var (
		Expect = NewWithT(t).Expect

		syft      *fakes.Executable
		generator scan.SyftCLI
	)

	it.Before(func() {
		syft = &fakes.Executable{}
		syft.ExecuteCall.Stub = func(execution pexec.Execution) error {
			_, err := fmt.Fprint(execution.Stdout, "cataloged 12 packages")
			return err
		}

		generator = scan.NewSyftCLI(syft)
	})

	it("runs syft scan with the source identity", func() {
		stdout, err := generator.Generate(scan.Request{
			Source:     "oci-dir:/tmp/images/nginx_1.25",
			Name:       "nginx",
			Version:    "1.25",
			Format:     "cyclonedx-json",
			OutputFile: "/tmp/sbom/nginx_1.25_sbom.json",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(stdout).To(Equal("cataloged 12 packages"))

		Expect(syft.ExecuteCall.Receives.Execution.Args).To(Equal([]string{
			"scan", "oci-dir:/tmp/images/nginx_1.25",
			"--source-name", "nginx",
			"--source-version", "1.25",
			"-o", "cyclonedx-json=/tmp/sbom/nginx_1.25_sbom.json",
		}))
		Expect(syft.ExecuteCall.Receives.Execution.Env).To(ContainElements(
			"SYFT_SCOPE=all-layers",
			"SYFT_LOG_LEVEL=info",
			"SYFT_FILE_CONTENT_SKIP_FILES_ABOVE_SIZE=100000000",
		))
	})

	it("omits the source identity when it is unknown", func() {
		_, err := generator.Generate(scan.Request{
			Source:     "file:/tmp/package.rpm",
			Format:     "spdx-json",
			OutputFile: "/tmp/sbom/package_sbom.json",
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(syft.ExecuteCall.Receives.Execution.Args).To(Equal([]string{
			"scan", "file:/tmp/package.rpm", "-o", "spdx-json=/tmp/sbom/package_sbom.json",
		}))
	})

	context("failure cases", func() {
		context("when syft exits with an error", func() {
			it.Before(func() {
				syft.ExecuteCall.Stub = func(execution pexec.Execution) error {
					_, _ = fmt.Fprint(execution.Stderr, "could not determine source")
					return errors.New("exit status 1")
				}
			})

			it("returns the diagnostic", func() {
				_, err := generator.Generate(scan.Request{Source: "dir:/nowhere"})
				Expect(err).To(MatchError(ContainSubstring("could not determine source")))
			})
		})

		context("when syft is not installed", func() {
			it.Before(func() {
				syft.ExecuteCall.Stub = nil
				syft.ExecuteCall.Returns.Error = exec.ErrNotFound
			})

			it("returns a missing dependency error", func() {
				_, err := generator.Generate(scan.Request{Source: "dir:/nowhere"})
				Expect(err).To(MatchError(internal.MissingDependencyError("syft")))
			})
		})
	})
}
