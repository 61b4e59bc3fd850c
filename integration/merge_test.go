package integration_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/onsi/gomega/gexec"
	"github.com/sclevine/spec"

	. "github.com/onsi/gomega"
)

func testMerge(t *testing.T, context spec.G, it spec.S) {
	var (
		withT      = NewWithT(t)
		Expect     = withT.Expect
		Eventually = withT.Eventually

		buffer *Buffer
		dir    string
	)

	it.Before(func() {
		buffer = &Buffer{}
		dir = t.TempDir()
	})

	context("failure cases", func() {
		context("when the results file holds no SBOMs", func() {
			it.Before(func() {
				Expect(os.WriteFile(filepath.Join(dir, "results.json"), []byte(`{
					"scanner": "syft",
					"success": false,
					"target": "/some/dir",
					"name": "some-dir",
					"version": "undefined",
					"error": "syft failed"
				}`), 0600)).To(Succeed())
			})

			it("prints an error and exits non-zero", func() {
				command := exec.Command(path, "merge", "--results", filepath.Join(dir, "results.json"), "--output-dir", dir)
				command.Dir = dir

				session, err := gexec.Start(command, buffer, buffer)
				Expect(err).NotTo(HaveOccurred())
				Eventually(session).Should(gexec.Exit(1), func() string { return buffer.String() })

				Expect(buffer.String()).To(ContainSubstring("failed to execute: no SBOM files to merge"))
			})
		})

		context("when neither a results file nor an SBOM is given", func() {
			it("prints an error and exits non-zero", func() {
				command := exec.Command(path, "merge")
				command.Dir = dir

				session, err := gexec.Start(command, buffer, buffer)
				Expect(err).NotTo(HaveOccurred())
				Eventually(session).Should(gexec.Exit(1), func() string { return buffer.String() })

				Expect(buffer.String()).To(ContainSubstring("at least one of the flags in the group [results sbom] is required"))
			})
		})
	})
}
