package digest_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/watchless/watchless/pkg/registry/digest"
)

func TestDigest(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Digest Suite")
}

const (
	listDigest     = "sha256:1111111111111111111111111111111111111111111111111111111111111111"
	amd64Digest    = "sha256:2222222222222222222222222222222222222222222222222222222222222222"
	arm64Digest    = "sha256:3333333333333333333333333333333333333333333333333333333333333333"
	manifestDigest = "sha256:4444444444444444444444444444444444444444444444444444444444444444"
)

const singleManifestType = "application/vnd.docker.distribution.manifest.v2+json"

const listManifestType = "application/vnd.docker.distribution.manifest.list.v2+json"

const manifestListBody = `{
	"mediaType": "` + listManifestType + `",
	"manifests": [
		{"digest": "` + amd64Digest + `", "platform": {"os": "linux", "architecture": "amd64"}},
		{"digest": "` + arm64Digest + `", "platform": {"os": "linux", "architecture": "arm64", "variant": "v8"}}
	]
}`

// scriptedResponse is one canned manifest answer.
type scriptedResponse struct {
	status  int
	body    string
	headers map[string]string
}

// scriptedTransport answers the challenge probe anonymously and serves the
// scripted responses for manifest requests in order, repeating the last one.
type scriptedTransport struct {
	mutex     sync.Mutex
	responses []scriptedResponse
	requests  int
}

func (t *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if req.URL.Path == "/v2/" {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{},
			Body:       http.NoBody,
			Request:    req,
		}, nil
	}

	index := t.requests
	t.requests++

	if index >= len(t.responses) {
		index = len(t.responses) - 1
	}

	scripted := t.responses[index]

	header := http.Header{}
	for key, value := range scripted.headers {
		header.Set(key, value)
	}

	return &http.Response{
		StatusCode: scripted.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(scripted.body)),
		Request:    req,
	}, nil
}

func singleManifest() scriptedResponse {
	return scriptedResponse{
		status: http.StatusOK,
		body:   "{}",
		headers: map[string]string{
			"Docker-Content-Digest": manifestDigest,
			"Content-Type":          singleManifestType,
		},
	}
}

func listManifest() scriptedResponse {
	return scriptedResponse{
		status: http.StatusOK,
		body:   manifestListBody,
		headers: map[string]string{
			"Docker-Content-Digest": listDigest,
			"Content-Type":          listManifestType,
		},
	}
}

func newResolver(transport *scriptedTransport, opts ...digest.Option) *digest.Resolver {
	options := []digest.Option{
		digest.WithHTTPClient(&http.Client{Transport: transport}),
		digest.WithSleeper(func(time.Duration) {}),
	}
	options = append(options, opts...)

	return digest.NewResolver(options...)
}

var linuxAmd64 = ocispec.Platform{OS: "linux", Architecture: "amd64"}

var _ = ginkgo.Describe("RemoteDigest", func() {
	remote := digest.RemoteDigest{
		Canonical: listDigest,
		Platform:  amd64Digest,
	}

	ginkgo.It("matches the canonical digest regardless of prefix", func() {
		gomega.Expect(remote.Matches(listDigest)).To(gomega.BeTrue())
		gomega.Expect(remote.Matches(strings.TrimPrefix(listDigest, "sha256:"))).To(gomega.BeTrue())
	})

	ginkgo.It("matches the platform-selected digest", func() {
		gomega.Expect(remote.Matches(amd64Digest)).To(gomega.BeTrue())
	})

	ginkgo.It("rejects other digests", func() {
		gomega.Expect(remote.Matches(arm64Digest)).To(gomega.BeFalse())
	})

	ginkgo.It("rejects an empty local digest", func() {
		gomega.Expect(remote.Matches("")).To(gomega.BeFalse())
	})
})

var _ = ginkgo.Describe("Resolver", func() {
	ginkgo.When("the registry serves a single-image manifest", func() {
		ginkgo.It("returns the header digest as canonical", func() {
			transport := &scriptedTransport{responses: []scriptedResponse{singleManifest()}}

			remote, err := newResolver(transport).
				Resolve(context.Background(), "nginx:latest", linuxAmd64, "")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(remote.Canonical).
				To(gomega.Equal(strings.TrimPrefix(manifestDigest, "sha256:")))
			gomega.Expect(remote.Platform).To(gomega.BeEmpty())
		})
	})

	ginkgo.When("the registry serves a manifest list", func() {
		ginkgo.It("selects the entry for the running platform", func() {
			transport := &scriptedTransport{responses: []scriptedResponse{listManifest()}}

			remote, err := newResolver(transport).
				Resolve(context.Background(), "nginx:latest", linuxAmd64, "")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(remote.Canonical).
				To(gomega.Equal(strings.TrimPrefix(listDigest, "sha256:")))
			gomega.Expect(remote.Platform).
				To(gomega.Equal(strings.TrimPrefix(amd64Digest, "sha256:")))
		})

		ginkgo.It("returns the list digest when no platform is known", func() {
			transport := &scriptedTransport{responses: []scriptedResponse{listManifest()}}

			remote, err := newResolver(transport).
				Resolve(context.Background(), "nginx:latest", ocispec.Platform{}, "")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(remote.Canonical).
				To(gomega.Equal(strings.TrimPrefix(listDigest, "sha256:")))
			gomega.Expect(remote.Platform).To(gomega.BeEmpty())
		})

		ginkgo.It("fails when the response carries no digest header", func() {
			transport := &scriptedTransport{responses: []scriptedResponse{
				{
					status:  http.StatusOK,
					body:    manifestListBody,
					headers: map[string]string{"Content-Type": listManifestType},
				},
			}}

			_, err := newResolver(transport).
				Resolve(context.Background(), "nginx:latest", linuxAmd64, "")
			gomega.Expect(err).To(gomega.MatchError(digest.ErrUnresolvable))
			gomega.Expect(transport.requests).To(gomega.Equal(1))
		})

		ginkgo.It("fails when no entry matches the platform", func() {
			transport := &scriptedTransport{responses: []scriptedResponse{listManifest()}}

			platform := ocispec.Platform{OS: "windows", Architecture: "amd64"}
			_, err := newResolver(transport).
				Resolve(context.Background(), "nginx:latest", platform, "")
			gomega.Expect(err).To(gomega.MatchError(digest.ErrUnresolvable))
		})
	})

	ginkgo.When("the registry answers 404", func() {
		ginkgo.It("fails without retrying", func() {
			transport := &scriptedTransport{responses: []scriptedResponse{
				{status: http.StatusNotFound},
			}}

			_, err := newResolver(transport).
				Resolve(context.Background(), "nginx:latest", linuxAmd64, "")
			gomega.Expect(err).To(gomega.MatchError(digest.ErrUnresolvable))
			gomega.Expect(transport.requests).To(gomega.Equal(1))
		})
	})

	ginkgo.When("the registry answers 401", func() {
		ginkgo.It("fails with an auth failure without retrying", func() {
			transport := &scriptedTransport{responses: []scriptedResponse{
				{status: http.StatusUnauthorized},
			}}

			_, err := newResolver(transport).
				Resolve(context.Background(), "nginx:latest", linuxAmd64, "")
			gomega.Expect(err).To(gomega.MatchError(digest.ErrAuthFailure))
			gomega.Expect(transport.requests).To(gomega.Equal(1))
		})
	})

	ginkgo.When("the registry answers 500 then recovers", func() {
		ginkgo.It("retries with backoff and succeeds", func() {
			var delays []time.Duration

			transport := &scriptedTransport{responses: []scriptedResponse{
				{status: http.StatusInternalServerError},
				singleManifest(),
			}}

			resolver := newResolver(transport,
				digest.WithSleeper(func(d time.Duration) { delays = append(delays, d) }))

			remote, err := resolver.
				Resolve(context.Background(), "nginx:latest", linuxAmd64, "")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(remote.Canonical).
				To(gomega.Equal(strings.TrimPrefix(manifestDigest, "sha256:")))
			gomega.Expect(delays).To(gomega.HaveLen(1))
		})
	})

	ginkgo.When("the registry rate limits", func() {
		ginkgo.It("honors the Retry-After hint", func() {
			var delays []time.Duration

			transport := &scriptedTransport{responses: []scriptedResponse{
				{status: http.StatusTooManyRequests, headers: map[string]string{"Retry-After": "7"}},
				singleManifest(),
			}}

			resolver := newResolver(transport,
				digest.WithSleeper(func(d time.Duration) { delays = append(delays, d) }))

			_, err := resolver.
				Resolve(context.Background(), "nginx:latest", linuxAmd64, "")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(delays).To(gomega.ConsistOf(7 * time.Second))
		})
	})

	ginkgo.When("every attempt fails transiently", func() {
		ginkgo.It("gives up after the attempt bound", func() {
			transport := &scriptedTransport{responses: []scriptedResponse{
				{status: http.StatusInternalServerError},
			}}

			resolver := newResolver(transport, digest.WithMaxAttempts(3))

			_, err := resolver.
				Resolve(context.Background(), "nginx:latest", linuxAmd64, "")
			gomega.Expect(err).To(gomega.MatchError(digest.ErrNetworkFailure))
			gomega.Expect(transport.requests).To(gomega.Equal(3))
		})
	})
})
