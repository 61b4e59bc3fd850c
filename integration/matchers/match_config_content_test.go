package matchers_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/onsi/gomega/types"
	"github.com/paketo-buildpacks/tally/integration/matchers"
	"github.com/sclevine/spec"

	. "github.com/onsi/gomega"
)

func testMatchConfigContent(t *testing.T, context spec.G, it spec.S) {
	var (
		Expect  = NewWithT(t).Expect
		matcher types.GomegaMatcher
		tmpDir  string
	)

	it.Before(func() {
		tmpDir = t.TempDir()
		Expect(os.WriteFile(filepath.Join(tmpDir, "tally.toml"), []byte(`
output_dir = "/tmp/sbom"
vuln = true

[publish]
  bucket = "sboms"
`), 0644)).To(Succeed())

		Expect(os.WriteFile(filepath.Join(tmpDir, "tally.yaml"), []byte(`
output_dir: /tmp/sbom
vuln: true
publish:
  bucket: sboms
`), 0644)).To(Succeed())
	})

	context("when the toml files have the same content", func() {
		it.Before(func() {
			matcher = matchers.MatchConfigContent(filepath.Join(tmpDir, "tally.toml"))
			Expect(os.WriteFile(filepath.Join(tmpDir, "actual.toml"), []byte(`
vuln = true
output_dir = "/tmp/sbom"
publish = { bucket = "sboms" }
`), 0644)).To(Succeed())
		})

		it("matches", func() {
			match, err := matcher.Match(filepath.Join(tmpDir, "actual.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(match).To(BeTrue())
		})
	})

	context("when the yaml files have the same content", func() {
		it.Before(func() {
			matcher = matchers.MatchConfigContent(filepath.Join(tmpDir, "tally.yaml"))
			Expect(os.WriteFile(filepath.Join(tmpDir, "actual.yaml"), []byte(`
publish: {bucket: sboms}
vuln: true
output_dir: /tmp/sbom
`), 0644)).To(Succeed())
		})

		it("matches", func() {
			match, err := matcher.Match(filepath.Join(tmpDir, "actual.yaml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(match).To(BeTrue())
		})
	})

	context("when the files do not have the same content", func() {
		it.Before(func() {
			matcher = matchers.MatchConfigContent(filepath.Join(tmpDir, "tally.toml"))
			Expect(os.WriteFile(filepath.Join(tmpDir, "actual.toml"), []byte(`vuln = false`), 0644)).To(Succeed())
		})

		it("does not match", func() {
			match, err := matcher.Match(filepath.Join(tmpDir, "actual.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(match).To(BeFalse())
		})
	})

	context("failure cases", func() {
		context("when the actual value is not a file path", func() {
			it.Before(func() {
				matcher = matchers.MatchConfigContent(filepath.Join(tmpDir, "tally.toml"))
			})

			it("returns an error", func() {
				_, err := matcher.Match(123)
				Expect(err).To(MatchError(ContainSubstring("MatchConfigContent matcher expects a file path")))
			})
		})

		context("when the actual file does not exist", func() {
			it.Before(func() {
				matcher = matchers.MatchConfigContent(filepath.Join(tmpDir, "tally.toml"))
			})

			it("returns an error", func() {
				_, err := matcher.Match(filepath.Join(tmpDir, "missing.toml"))
				Expect(err).To(MatchError(ContainSubstring("no such file or directory")))
			})
		})

		context("when the expected file does not exist", func() {
			it.Before(func() {
				matcher = matchers.MatchConfigContent(filepath.Join(tmpDir, "missing.toml"))
			})

			it("returns an error", func() {
				_, err := matcher.Match(filepath.Join(tmpDir, "tally.toml"))
				Expect(err).To(MatchError(ContainSubstring("no such file or directory")))
			})
		})
	})
}
