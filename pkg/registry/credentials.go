// Package registry resolves registry credentials for digest lookups, checking
// environment variables first and falling back to the Docker config file and
// its credential store.
package registry

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	dockerCliConfig "github.com/docker/cli/cli/config"
	dockerConfigCredentials "github.com/docker/cli/cli/config/credentials"

	"github.com/watchless/watchless/pkg/registry/helpers"
)

// Errors for credential resolution.
var (
	// errUnsetAuthVars indicates REPO_USER/REPO_PASS are not both set.
	errUnsetAuthVars = errors.New("registry auth environment variables not set")
	// errFailedLoadDockerConfig indicates the Docker config file could not be loaded.
	errFailedLoadDockerConfig = errors.New("failed to load Docker config")
)

// EncodedAuth returns base64("username:password") credentials for the image's
// registry, or an empty string if none are configured. Anonymous access is
// not an error; most public images need no credentials.
//
// Parameters:
//   - imageRef: Image reference whose registry the credentials are for.
//
// Returns:
//   - string: Encoded credentials or empty for anonymous access.
//   - error: Non-nil only if a configured credential source is unreadable.
func EncodedAuth(imageRef string) (string, error) {
	if auth, err := encodedEnvAuth(); err == nil {
		return auth, nil
	}

	auth, err := encodedConfigAuth(imageRef)
	if err != nil {
		return "", err
	}

	return auth, nil
}

// encodedEnvAuth reads REPO_USER and REPO_PASS, matching the conventional
// variables used by registry tooling.
func encodedEnvAuth() (string, error) {
	username := os.Getenv("REPO_USER")
	password := os.Getenv("REPO_PASS")

	if username == "" || password == "" {
		return "", errUnsetAuthVars
	}

	logrus.WithField("username", username).Debug("Loaded registry credentials from environment")

	return encodeUserPass(username, password), nil
}

// encodedConfigAuth looks the registry up in the Docker config file,
// delegating to the configured credential store when one is set.
func encodedConfigAuth(imageRef string) (string, error) {
	host, err := helpers.RegistryHost(imageRef)
	if err != nil {
		return "", fmt.Errorf("failed to get registry host: %w", err)
	}

	configFile, err := dockerCliConfig.Load(dockerCliConfig.Dir())
	if err != nil {
		logrus.WithError(err).
			WithField("config_dir", dockerCliConfig.Dir()).
			Debug("Failed to load Docker config file")

		return "", fmt.Errorf("%w: %w", errFailedLoadDockerConfig, err)
	}

	credStore := dockerConfigCredentials.DetectDefaultStore(configFile.CredentialsStore)
	if credStore != "" {
		configFile.CredentialsStore = credStore
	}

	authConfig, err := configFile.GetAuthConfig(host)
	if err != nil || authConfig.Username == "" || authConfig.Password == "" {
		logrus.WithField("registry", host).Debug("No stored credentials, using anonymous access")

		return "", nil
	}

	logrus.WithFields(logrus.Fields{
		"registry": host,
		"username": authConfig.Username,
	}).Debug("Loaded registry credentials from Docker config")

	return encodeUserPass(authConfig.Username, authConfig.Password), nil
}

func encodeUserPass(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
