package oci_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/paketo-buildpacks/tally/internal/convert"
	"github.com/paketo-buildpacks/tally/internal/oci"
	"github.com/paketo-buildpacks/tally/internal/scan"
	"github.com/sclevine/spec"

	. "github.com/onsi/gomega"
)

func testLayout(t *testing.T, context spec.G, it spec.S) {
	var (
		Expect = NewWithT(t).Expect

		dir string
	)

	it.Before(func() {
		var err error
		dir, err = os.MkdirTemp("", "layout")
		Expect(err).NotTo(HaveOccurred())
	})

	it.After(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	it("writes an annotated OCI layout", func() {
		image, err := random.Image(1024, 2)
		Expect(err).NotTo(HaveOccurred())

		ref, err := name.ParseReference("registry.example.com/acme/nginx:1.25")
		Expect(err).NotTo(HaveOccurred())

		destination := filepath.Join(dir, "nginx_1.25")
		Expect(oci.WriteLayout(destination, image, ref)).To(Succeed())

		Expect(convert.DetectOrigin(destination)).To(Equal(convert.OCI))

		metadata, ok := oci.Metadata(destination)
		Expect(ok).To(BeTrue())
		Expect(metadata).To(Equal(scan.Metadata{ImageName: "nginx", ImageVersion: "1.25"}))
	})

	it("reports layouts without metadata", func() {
		_, ok := oci.Metadata(dir)
		Expect(ok).To(BeFalse())
	})
}
