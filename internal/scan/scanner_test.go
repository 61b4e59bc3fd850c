package scan_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paketo-buildpacks/packit/v2/scribe"
	"github.com/paketo-buildpacks/tally/internal"
	"github.com/paketo-buildpacks/tally/internal/discovery"
	"github.com/paketo-buildpacks/tally/internal/scan"
	"github.com/paketo-buildpacks/tally/internal/scan/fakes"
	"github.com/sclevine/spec"

	. "github.com/onsi/gomega"
)

func testScanner(t *testing.T, context spec.G, it spec.S) {
	var (
		Expect = NewWithT(t).Expect

		outputDir  string
		convertDir string
		generator  *fakes.Generator
		converter  *fakes.Converter
		output     *bytes.Buffer
		scanner    scan.Scanner
	)

	it.Before(func() {
		var err error
		outputDir, err = os.MkdirTemp("", "output")
		Expect(err).NotTo(HaveOccurred())

		convertDir, err = os.MkdirTemp("", "convert")
		Expect(err).NotTo(HaveOccurred())

		generator = &fakes.Generator{}
		generator.GenerateCall.Stub = func(request scan.Request) (string, error) {
			return "", os.WriteFile(request.OutputFile, []byte(`{"bomFormat": "CycloneDX"}`), 0600)
		}

		converter = &fakes.Converter{}
		converter.ConvertToOCICall.Stub = func(path, destination string) (string, error) {
			return destination, nil
		}

		output = bytes.NewBuffer(nil)
		scanner = scan.NewScanner(generator, converter, scan.Options{
			OutputDir:    outputDir,
			OutputFormat: "cyclonedx-json",
			ConvertDir:   convertDir,
		}, scribe.NewLogger(output))
	})

	it.After(func() {
		Expect(os.RemoveAll(outputDir)).To(Succeed())
		Expect(os.RemoveAll(convertDir)).To(Succeed())
	})

	context("Scan", func() {
		it("scans the target and records the SBOM", func() {
			result, err := scanner.Scan(scan.Invocation{
				Target:     "/src/myrepo",
				TargetType: scan.TypeDir,
				Name:       "myrepo",
				Version:    "v2.1.0",
			})
			Expect(err).NotTo(HaveOccurred())

			sbom := filepath.Join(outputDir, "myrepo_v2.1.0_sbom.json")
			Expect(generator.GenerateCall.Receives.Request).To(Equal(scan.Request{
				Source:     "dir:/src/myrepo",
				Name:       "myrepo",
				Version:    "v2.1.0",
				Format:     "cyclonedx-json",
				OutputFile: sbom,
			}))

			Expect(result.Success).To(BeTrue())
			Expect(result.SBOMPath).To(Equal(sbom))
			Expect(result.Digest).To(HavePrefix("sha256:"))
			Expect(result.TargetType).To(Equal("dir"))
			Expect(output.String()).To(ContainSubstring("SBOM written to"))
		})

		it("names the output from the image metadata", func() {
			result, err := scanner.Scan(scan.Invocation{
				Target:     "/tmp/images/layout",
				TargetType: scan.TypeOCIDir,
				Metadata:   scan.Metadata{ImageName: "nginx", ImageVersion: "1.25"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.SBOMPath).To(Equal(filepath.Join(outputDir, "nginx_1.25_sbom.json")))
			Expect(result.Name).To(Equal("nginx"))
		})

		context("when the scanner fails", func() {
			it.Before(func() {
				generator.GenerateCall.Stub = nil
				generator.GenerateCall.Returns.Error = errors.New("syft failed: exit status 1")
			})

			it("records the failure without an SBOM path", func() {
				result, err := scanner.Scan(scan.Invocation{Target: "/src/broken", TargetType: scan.TypeDir})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Success).To(BeFalse())
				Expect(result.SBOMPath).To(BeEmpty())
				Expect(result.Error).To(Equal("syft failed: exit status 1"))
			})
		})

		context("failure cases", func() {
			context("when the scanner is not installed", func() {
				it.Before(func() {
					generator.GenerateCall.Stub = nil
					generator.GenerateCall.Returns.Error = internal.MissingDependencyError("syft")
				})

				it("returns an error", func() {
					_, err := scanner.Scan(scan.Invocation{Target: "/src", TargetType: scan.TypeDir})
					Expect(err).To(MatchError(internal.MissingDependencyError("syft")))
				})
			})
		})
	})

	context("ScanBatch", func() {
		var units []discovery.ImageUnit

		it.Before(func() {
			units = []discovery.ImageUnit{
				{Name: "nginx", Version: "1.25", Path: "/iso/images/nginx/1.25", Source: "myiso"},
				{Name: "redis", Version: "7.2", Path: "/iso/images/redis/7.2", Source: "myiso"},
			}
		})

		it("converts and scans every unit as an OCI layout", func() {
			aggregate, err := scanner.ScanBatch(units)
			Expect(err).NotTo(HaveOccurred())

			Expect(aggregate.Success).To(BeTrue())
			Expect(aggregate.ScannedImages).To(Equal([]string{"nginx:1.25", "redis:7.2"}))
			Expect(aggregate.Results).To(HaveLen(2))

			for _, id := range []string{"nginx:1.25", "redis:7.2"} {
				Expect(aggregate.Results[id].Success).To(BeTrue())
				Expect(aggregate.Results[id].TargetType).To(Equal("oci-dir"))
			}

			Expect(converter.ConvertToOCICall.CallCount).To(Equal(2))
			Expect(converter.ConvertToOCICall.Receives.Path).To(Equal("/iso/images/redis/7.2"))
			Expect(converter.ConvertToOCICall.Receives.Destination).To(Equal(filepath.Join(convertDir, "redis_7.2")))

			Expect(aggregate.Results["nginx:1.25"].Target).To(Equal(filepath.Join(convertDir, "nginx_1.25")))
			Expect(aggregate.Results["redis:7.2"].SBOMPath).To(Equal(filepath.Join(outputDir, "redis_7.2_sbom.json")))
		})

		it("scans excluded units as plain directories", func() {
			units[0].Excluded = true

			aggregate, err := scanner.ScanBatch(units)
			Expect(err).NotTo(HaveOccurred())

			Expect(converter.ConvertToOCICall.CallCount).To(Equal(1))
			Expect(aggregate.Results["nginx:1.25"].TargetType).To(Equal("dir"))
			Expect(aggregate.Results["nginx:1.25"].Target).To(Equal("/iso/images/nginx/1.25"))
			Expect(aggregate.Results["redis:7.2"].TargetType).To(Equal("oci-dir"))
		})

		it("continues past a failing unit", func() {
			converter.ConvertToOCICall.Stub = func(path, destination string) (string, error) {
				if path == "/iso/images/nginx/1.25" {
					return "", errors.New("failed to convert")
				}

				return destination, nil
			}

			aggregate, err := scanner.ScanBatch(units)
			Expect(err).NotTo(HaveOccurred())

			Expect(aggregate.Results["nginx:1.25"].Success).To(BeFalse())
			Expect(aggregate.Results["nginx:1.25"].SBOMPath).To(BeEmpty())
			Expect(aggregate.Results["nginx:1.25"].Error).To(Equal("failed to convert"))
			Expect(aggregate.Results["redis:7.2"].Success).To(BeTrue())
			Expect(output.String()).To(ContainSubstring("1 of 2 image(s) failed to scan"))
		})

		context("failure cases", func() {
			context("when skopeo is not installed", func() {
				it.Before(func() {
					converter.ConvertToOCICall.Stub = nil
					converter.ConvertToOCICall.Returns.Error = internal.MissingDependencyError("skopeo")
				})

				it("returns an error", func() {
					_, err := scanner.ScanBatch(units)
					Expect(err).To(MatchError(internal.MissingDependencyError("skopeo")))
				})
			})
		})
	})
}
