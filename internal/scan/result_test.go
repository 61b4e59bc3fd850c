package scan_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paketo-buildpacks/tally/internal/scan"
	"github.com/sclevine/spec"

	. "github.com/onsi/gomega"
)

func testResult(t *testing.T, context spec.G, it spec.S) {
	var Expect = NewWithT(t).Expect

	context("Failed", func() {
		it("clears every artifact reference", func() {
			result := scan.Result{
				Success:  true,
				SBOMPath: "/tmp/sbom/a_sbom.json",
				VulnPath: "/tmp/sbom/a_vuln.json",
				Digest:   "sha256:abc",
			}.Failed(errors.New("exit status 1"))

			Expect(result.Success).To(BeFalse())
			Expect(result.SBOMPath).To(BeEmpty())
			Expect(result.VulnPath).To(BeEmpty())
			Expect(result.Digest).To(BeEmpty())
			Expect(result.Error).To(Equal("exit status 1"))
		})
	})

	context("Aggregate", func() {
		it("keeps insertion order and reports failures", func() {
			aggregate := scan.NewAggregate()
			aggregate.Add("redis:7.2", scan.Result{Success: true})
			aggregate.Add("nginx:1.25", scan.Result{Success: false})
			aggregate.Add("redis:7.2", scan.Result{Success: true})

			Expect(aggregate.Success).To(BeTrue())
			Expect(aggregate.ScannedImages).To(Equal([]string{"redis:7.2", "nginx:1.25"}))
			Expect(aggregate.IDs()).To(Equal([]string{"nginx:1.25", "redis:7.2"}))
			Expect(aggregate.Failures()).To(Equal([]string{"nginx:1.25"}))
		})

		it("keeps the last result added for an ID", func() {
			aggregate := scan.NewAggregate()
			aggregate.Add("nginx:1.25", scan.Result{Success: true, Target: "/a/nginx/1.25"})
			aggregate.Add("nginx:1.25", scan.Result{Success: false, Target: "/b/nginx/1.25"})

			Expect(aggregate.ScannedImages).To(Equal([]string{"nginx:1.25"}))
			Expect(aggregate.Results["nginx:1.25"].Target).To(Equal("/b/nginx/1.25"))
		})

		it("describes enumeration failures", func() {
			aggregate := scan.FailedAggregate(errors.New("no such directory"))
			Expect(aggregate.Success).To(BeFalse())
			Expect(aggregate.Error).To(Equal("no such directory"))
			Expect(aggregate.Results).To(BeEmpty())
		})
	})

	context("WriteResults", func() {
		var dir string

		it.Before(func() {
			var err error
			dir, err = os.MkdirTemp("", "results")
			Expect(err).NotTo(HaveOccurred())
		})

		it.After(func() {
			Expect(os.RemoveAll(dir)).To(Succeed())
		})

		it("persists results that can be read back", func() {
			aggregate := scan.NewAggregate()
			aggregate.Add("nginx:1.25", scan.Result{Success: true, SBOMPath: "/tmp/sbom/nginx_1.25_sbom.json"})

			path := filepath.Join(dir, "nested", "myiso_1.0_results.json")
			err := scan.WriteResults(path, scan.Result{
				Scanner:    "syft",
				Success:    true,
				Name:       "myiso",
				Version:    "1.0",
				SBOMPath:   "/tmp/sbom/myiso_1.0_sbom.json",
				HasImages:  true,
				ImagesScan: &aggregate,
			})
			Expect(err).NotTo(HaveOccurred())

			content, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(ContainSubstring(`"images_scan": {`))
			Expect(string(content)).NotTo(ContainSubstring(`"image_vulns"`))

			result, err := scan.ReadResults(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Name).To(Equal("myiso"))
			Expect(result.ImagesScan.Results).To(HaveKey("nginx:1.25"))
		})

		context("failure cases", func() {
			context("when the results file is not JSON", func() {
				it("returns an error", func() {
					path := filepath.Join(dir, "broken.json")
					Expect(os.WriteFile(path, []byte("not-json"), 0600)).To(Succeed())

					_, err := scan.ReadResults(path)
					Expect(err).To(MatchError(ContainSubstring("failed to parse results")))
				})
			})
		})
	})
}
