package manifest_test

import (
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/watchless/watchless/pkg/registry/manifest"
)

func TestManifest(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Manifest Suite")
}

var _ = ginkgo.Describe("URL", func() {
	ginkgo.It("builds the Docker Hub library URL for bare names", func() {
		url, err := manifest.URL("nginx:latest")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(url).
			To(gomega.Equal("https://index.docker.io/v2/library/nginx/manifests/latest"))
	})

	ginkgo.It("builds URLs for other registries", func() {
		url, err := manifest.URL("ghcr.io/acme/app:v1.2.3")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(url).
			To(gomega.Equal("https://ghcr.io/v2/acme/app/manifests/v1.2.3"))
	})

	ginkgo.It("defaults missing tags to latest", func() {
		url, err := manifest.URL("nginx")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(url).
			To(gomega.Equal("https://index.docker.io/v2/library/nginx/manifests/latest"))
	})

	ginkgo.It("fails on unparsable references", func() {
		_, err := manifest.URL("UPPERCASE!!")
		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})
