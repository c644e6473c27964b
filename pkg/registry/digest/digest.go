// Package digest resolves the image digest a registry currently advertises
// for a repository:tag, using manifest lookups that never fetch image layers.
// Multi-architecture manifest lists are resolved to the entry matching the
// running platform. Transient failures are retried with bounded exponential
// backoff; rate limiting honors the server's retry hint.
package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/watchless/watchless/pkg/registry/auth"
	"github.com/watchless/watchless/pkg/registry/helpers"
	"github.com/watchless/watchless/pkg/registry/manifest"
)

// ContentDigestHeader is the HTTP header carrying the manifest digest.
const ContentDigestHeader = "Docker-Content-Digest"

// acceptHeader advertises support for both OCI and Docker manifest formats,
// single-image and multi-arch.
const acceptHeader = "application/vnd.oci.image.index.v1+json, " +
	"application/vnd.docker.distribution.manifest.list.v2+json, " +
	"application/vnd.oci.image.manifest.v1+json, " +
	"application/vnd.docker.distribution.manifest.v2+json"

// Defaults for retry behavior.
const (
	defaultMaxAttempts    = 3
	defaultBaseDelay      = 500 * time.Millisecond
	defaultRateLimitDelay = 5 * time.Second
)

// Failure kinds surfaced to the orchestrator. Each is scoped to one
// container's check and never aborts the run.
var (
	// ErrAuthFailure indicates the registry rejected the credentials; not
	// retried within the run.
	ErrAuthFailure = errors.New("registry authentication failed")
	// ErrNetworkFailure indicates a transient transport or server error;
	// retried with exponential backoff.
	ErrNetworkFailure = errors.New("registry request failed")
	// ErrRateLimited indicates the registry throttled the request; retried
	// after the server's hint or a fixed delay.
	ErrRateLimited = errors.New("registry rate limited")
	// ErrUnresolvable indicates the registry cannot provide a digest for the
	// reference and platform; never retried.
	ErrUnresolvable = errors.New("remote digest unresolvable")
)

// RemoteDigest is the result of a successful resolution.
//
// Canonical is the digest of the manifest (or manifest list) as served, the
// value engines record in RepoDigests. Platform is the digest of the entry
// selected for the running platform when the reference points at a
// multi-arch list, empty otherwise.
type RemoteDigest struct {
	Canonical string
	Platform  string
}

// Matches reports whether a locally recorded digest refers to the same image
// version, accepting either the canonical or the platform-selected digest.
//
// Parameters:
//   - localDigest: Digest from engine-local metadata, any prefix format.
//
// Returns:
//   - bool: True if the local digest matches either remote digest.
func (d RemoteDigest) Matches(localDigest string) bool {
	local := helpers.NormalizeDigest(localDigest)
	if local == "" {
		return false
	}

	return local == helpers.NormalizeDigest(d.Canonical) ||
		(d.Platform != "" && local == helpers.NormalizeDigest(d.Platform))
}

// manifestList models the subset of a manifest list / OCI index needed to
// select a platform entry.
type manifestList struct {
	MediaType string `json:"mediaType"`
	Manifests []struct {
		Digest   string            `json:"digest"`
		Platform *ocispec.Platform `json:"platform"`
	} `json:"manifests"`
}

// Resolver resolves remote digests with per-call timeouts and bounded retries.
type Resolver struct {
	client         *http.Client
	timeout        time.Duration
	maxAttempts    int
	baseDelay      time.Duration
	rateLimitDelay time.Duration
	sleep          func(time.Duration)
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithTimeout bounds each individual registry request.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) { r.timeout = timeout }
}

// WithMaxAttempts bounds total attempts for transient failures.
func WithMaxAttempts(attempts int) Option {
	return func(r *Resolver) {
		if attempts > 0 {
			r.maxAttempts = attempts
		}
	}
}

// WithHTTPClient substitutes the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) { r.client = client }
}

// WithSleeper substitutes the backoff sleep function, mainly for tests.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(r *Resolver) { r.sleep = sleep }
}

// NewResolver creates a Resolver with the given options applied over
// defaults (3 attempts, 500ms base backoff, 30s request timeout).
func NewResolver(opts ...Option) *Resolver {
	resolver := &Resolver{
		client:         &http.Client{},
		timeout:        30 * time.Second,
		maxAttempts:    defaultMaxAttempts,
		baseDelay:      defaultBaseDelay,
		rateLimitDelay: defaultRateLimitDelay,
		sleep:          time.Sleep,
	}

	for _, opt := range opts {
		opt(resolver)
	}

	return resolver
}

// Resolve returns the digest the registry currently advertises for the image
// reference at the given platform.
//
// Authentication is transparent: credentials are looked up per registry and
// anonymous access is used when none exist. Auth failures and definitive
// not-found answers are returned immediately; transient failures are retried
// up to the attempt bound with exponential backoff, rate limiting with the
// server-provided delay when present.
//
// Parameters:
//   - ctx: Context bounding the whole resolution including retries.
//   - imageRef: Image reference (repository:tag).
//   - platform: Platform of the running container for manifest list selection.
//   - registryAuth: Base64 "username:password" credentials, or empty.
//
// Returns:
//   - RemoteDigest: Resolved digests on success.
//   - error: One of ErrAuthFailure, ErrRateLimited, ErrNetworkFailure, or
//     ErrUnresolvable (wrapped with detail) on failure.
func (r *Resolver) Resolve(
	ctx context.Context,
	imageRef string,
	platform ocispec.Platform,
	registryAuth string,
) (RemoteDigest, error) {
	fields := logrus.Fields{
		"image":    imageRef,
		"platform": platform.OS + "/" + platform.Architecture,
	}

	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		remote, err := r.fetch(ctx, imageRef, platform, registryAuth)
		if err == nil {
			logrus.WithFields(fields).
				WithField("digest", remote.Canonical).
				Debug("Resolved remote digest")

			return remote, nil
		}

		lastErr = err

		var delay time.Duration

		switch {
		case errors.Is(err, ErrAuthFailure), errors.Is(err, ErrUnresolvable):
			// Definitive answers are never retried.
			return RemoteDigest{}, err
		case errors.Is(err, ErrRateLimited):
			delay = retryAfter(err, r.rateLimitDelay)
		default:
			delay = r.baseDelay << (attempt - 1)
		}

		if attempt == r.maxAttempts {
			break
		}

		logrus.WithFields(fields).WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Debug("Retrying digest resolution")
		r.sleep(delay)

		if ctx.Err() != nil {
			return RemoteDigest{}, fmt.Errorf("%w: %w", ErrNetworkFailure, ctx.Err())
		}
	}

	logrus.WithFields(fields).WithError(lastErr).Debug("Digest resolution attempts exhausted")

	return RemoteDigest{}, lastErr
}

// rateLimitError carries the server's retry hint through the retry loop.
type rateLimitError struct {
	retryAfter time.Duration
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("%v (retry after %v)", ErrRateLimited, e.retryAfter)
}

func (e *rateLimitError) Is(target error) bool { return target == ErrRateLimited }

// retryAfter extracts the server hint from a rate limit error, falling back
// to the fixed delay.
func retryAfter(err error, fallback time.Duration) time.Duration {
	var rle *rateLimitError
	if errors.As(err, &rle) && rle.retryAfter > 0 {
		return rle.retryAfter
	}

	return fallback
}

// fetch performs a single manifest lookup.
func (r *Resolver) fetch(
	ctx context.Context,
	imageRef string,
	platform ocispec.Platform,
	registryAuth string,
) (RemoteDigest, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	authHeader, err := auth.Authorization(reqCtx, r.client, imageRef, registryAuth)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsRejected) {
			return RemoteDigest{}, fmt.Errorf("%w: %w", ErrAuthFailure, err)
		}

		return RemoteDigest{}, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}

	manifestURL, err := manifest.URL(imageRef)
	if err != nil {
		return RemoteDigest{}, fmt.Errorf("%w: %w", ErrUnresolvable, err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return RemoteDigest{}, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}

	req.Header.Set("Accept", acceptHeader)

	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return RemoteDigest{}, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return RemoteDigest{}, fmt.Errorf("%w: manifest request returned %s", ErrAuthFailure, resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		return RemoteDigest{}, fmt.Errorf("%w: manifest not found", ErrUnresolvable)
	case resp.StatusCode == http.StatusTooManyRequests:
		return RemoteDigest{}, &rateLimitError{retryAfter: parseRetryAfter(resp)}
	case resp.StatusCode != http.StatusOK:
		return RemoteDigest{}, fmt.Errorf("%w: manifest request returned %s", ErrNetworkFailure, resp.Status)
	}

	return extractDigest(resp, platform)
}

// extractDigest reads the digest from the response headers and, for manifest
// lists, selects the entry matching the running platform from the body.
func extractDigest(resp *http.Response, platform ocispec.Platform) (RemoteDigest, error) {
	// Without the header the canonical digest is unknown, and a
	// platform-only comparison could misreport an up-to-date container as
	// stale. No digest means no comparison.
	canonical := helpers.NormalizeDigest(resp.Header.Get(ContentDigestHeader))
	if canonical == "" {
		return RemoteDigest{}, fmt.Errorf("%w: response carries no digest header", ErrUnresolvable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return RemoteDigest{}, fmt.Errorf("%w: failed to read manifest body: %w", ErrNetworkFailure, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isManifestList(contentType, body) {
		return RemoteDigest{Canonical: canonical}, nil
	}

	// Without a platform to select by, the list digest itself is the answer.
	if platform.OS == "" {
		return RemoteDigest{Canonical: canonical}, nil
	}

	var list manifestList
	if err := json.Unmarshal(body, &list); err != nil {
		return RemoteDigest{}, fmt.Errorf("%w: failed to decode manifest list: %w", ErrUnresolvable, err)
	}

	for _, entry := range list.Manifests {
		if entry.Platform != nil && platformMatches(*entry.Platform, platform) {
			return RemoteDigest{
				Canonical: canonical,
				Platform:  helpers.NormalizeDigest(entry.Digest),
			}, nil
		}
	}

	return RemoteDigest{}, fmt.Errorf(
		"%w: no manifest entry for platform %s/%s",
		ErrUnresolvable,
		platform.OS,
		platform.Architecture,
	)
}

// isManifestList reports whether the response is a multi-arch manifest list
// or OCI index, checking the Content-Type header first and the body's
// mediaType field as fallback.
func isManifestList(contentType string, body []byte) bool {
	if strings.Contains(contentType, "manifest.list") || strings.Contains(contentType, "image.index") {
		return true
	}

	var peek struct {
		MediaType string `json:"mediaType"`
	}

	if err := json.Unmarshal(body, &peek); err != nil {
		return false
	}

	return strings.Contains(peek.MediaType, "manifest.list") ||
		strings.Contains(peek.MediaType, "image.index")
}

// platformMatches compares a manifest entry's platform with the running one.
// Variant is compared only when both sides declare it, since registries and
// engines are inconsistent about reporting it.
func platformMatches(entry, want ocispec.Platform) bool {
	if entry.OS != want.OS || entry.Architecture != want.Architecture {
		return false
	}

	if entry.Variant != "" && want.Variant != "" && entry.Variant != want.Variant {
		return false
	}

	return true
}

// parseRetryAfter reads the Retry-After header, supporting the
// delay-in-seconds form. Zero means no usable hint.
func parseRetryAfter(resp *http.Response) time.Duration {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}

	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}
