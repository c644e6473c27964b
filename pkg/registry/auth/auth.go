// Package auth handles registry authentication for digest lookups: probing
// the challenge endpoint and obtaining basic or bearer authorization headers.
// Anonymous access and token-based access are handled transparently; callers
// only see the resulting Authorization header value.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/distribution/reference"
	"github.com/sirupsen/logrus"

	"github.com/watchless/watchless/pkg/registry/helpers"
	"github.com/watchless/watchless/pkg/types"
)

// ChallengeHeader is the HTTP header carrying the registry's auth challenge.
const ChallengeHeader = "WWW-Authenticate"

// Static errors for registry authentication failures.
var (
	// ErrCredentialsRejected indicates the registry refused the supplied
	// credentials; callers must not retry within the run.
	ErrCredentialsRejected = errors.New("registry rejected credentials")

	errUnsupportedChallenge   = errors.New("unsupported challenge type from registry")
	errInvalidChallengeHeader = errors.New("challenge header missing realm or service")
	errFailedParseImageName   = errors.New("failed to parse image name")
)

// Authorization resolves the Authorization header value required to query
// manifests for the given image, probing the registry's challenge endpoint.
//
// An empty return value with a nil error means the registry accepts anonymous
// requests without any Authorization header.
//
// Parameters:
//   - ctx: Context bounding the challenge and token requests.
//   - client: HTTP client used for the probe and token fetch.
//   - imageRef: Image reference identifying the repository.
//   - registryAuth: Base64 "username:password" credentials, or empty.
//
// Returns:
//   - string: Authorization header value ("Basic ..." or "Bearer ..."), or empty.
//   - error: Non-nil if the challenge cannot be satisfied.
func Authorization(
	ctx context.Context,
	client *http.Client,
	imageRef string,
	registryAuth string,
) (string, error) {
	normalizedRef, err := reference.ParseNormalizedNamed(imageRef)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errFailedParseImageName, err)
	}

	challengeURL := ChallengeURL(normalizedRef)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, challengeURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create challenge request: %w", err)
	}

	req.Header.Set("Accept", "*/*")

	res, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("challenge request failed: %w", err)
	}
	defer res.Body.Close()

	challenge := res.Header.Get(ChallengeHeader)
	logrus.WithFields(logrus.Fields{
		"status": res.Status,
		"header": challenge,
	}).Debug("Got response to challenge request")

	// Registries that need no auth answer 200 without a challenge.
	if res.StatusCode == http.StatusOK && challenge == "" {
		return "", nil
	}

	lowered := strings.ToLower(challenge)

	switch {
	case strings.HasPrefix(lowered, "basic"):
		if registryAuth == "" {
			return "", fmt.Errorf("%w: no credentials for basic challenge", ErrCredentialsRejected)
		}

		return "Basic " + registryAuth, nil
	case strings.HasPrefix(lowered, "bearer"):
		return bearerHeader(ctx, client, lowered, normalizedRef, registryAuth)
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedChallenge, challenge)
	}
}

// bearerHeader fetches a bearer token per the challenge instructions and
// returns the ready-to-use Authorization header value.
func bearerHeader(
	ctx context.Context,
	client *http.Client,
	challenge string,
	imageRef reference.Named,
	registryAuth string,
) (string, error) {
	tokenURL, err := TokenURL(challenge, imageRef)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}

	if registryAuth != "" {
		req.Header.Add("Authorization", "Basic "+registryAuth)
	}

	res, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: token endpoint returned %s", ErrCredentialsRejected, res.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	tokenResponse := &types.TokenResponse{}
	if err := json.Unmarshal(body, tokenResponse); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	return "Bearer " + tokenResponse.Token, nil
}

// TokenURL constructs the token endpoint URL from a bearer challenge.
//
// Parameters:
//   - challenge: Lowercased bearer challenge header value.
//   - imageRef: Image reference used to scope the token.
//
// Returns:
//   - *url.URL: Token URL with service and scope query parameters.
//   - error: Non-nil if the challenge lacks realm or service.
func TokenURL(challenge string, imageRef reference.Named) (*url.URL, error) {
	raw := strings.TrimPrefix(challenge, "bearer")
	pairs := strings.Split(raw, ",")
	values := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		trimmed := strings.TrimSpace(pair)
		if key, val, ok := strings.Cut(trimmed, "="); ok {
			values[key] = strings.Trim(val, `"`)
		}
	}

	if values["realm"] == "" || values["service"] == "" {
		return nil, fmt.Errorf("%w: %q", errInvalidChallengeHeader, challenge)
	}

	tokenURL, err := url.Parse(values["realm"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse challenge realm: %w", err)
	}

	query := tokenURL.Query()
	query.Add("service", values["service"])

	scope := fmt.Sprintf("repository:%s:pull", reference.Path(imageRef))
	query.Add("scope", scope)
	logrus.WithFields(logrus.Fields{
		"scope": scope,
		"realm": values["realm"],
	}).Debug("Built token URL from challenge")

	tokenURL.RawQuery = query.Encode()

	return tokenURL, nil
}

// ChallengeURL builds the challenge probe URL for the image's registry.
//
// Parameters:
//   - imageRef: Parsed image reference.
//
// Returns:
//   - url.URL: HTTPS URL of the registry's /v2/ endpoint.
func ChallengeURL(imageRef reference.Named) url.URL {
	host, _ := helpers.RegistryHost(imageRef.Name())

	return url.URL{
		Scheme: "https",
		Host:   host,
		Path:   "/v2/",
	}
}
