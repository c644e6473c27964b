// Package flags manages command-line flags and environment variables for Watchless configuration.
package flags

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/watchless/watchless/pkg/types"
)

// DockerAPIMinVersion specifies the minimum Docker API version required by Watchless.
const DockerAPIMinVersion string = "1.44"

// defaultPollIntervalSeconds defines the default polling interval in seconds (24 hours).
const defaultPollIntervalSeconds = 86400

// Default per-call timeouts. They bound individual engine and registry
// operations, not the run as a whole.
const (
	defaultStopTimeout     = 10 * time.Second
	defaultEngineTimeout   = time.Minute
	defaultRegistryTimeout = 30 * time.Second
)

// defaultMaxRetries bounds retry attempts for transient registry failures.
const defaultMaxRetries = 3

// defaultConcurrency bounds simultaneous registry digest lookups.
const defaultConcurrency = 4

// flagsFs is the filesystem secret files are read from, swappable in tests.
var flagsFs afero.Fs = afero.NewOsFs()

// errInvalidLogFormat indicates an invalid log format was specified.
var errInvalidLogFormat = errors.New("invalid log format specified")

// errInvalidLogLevel indicates an invalid log level was specified.
var errInvalidLogLevel = errors.New("invalid log level specified")

// errSetEnvFailed indicates a failure to set an environment variable.
var errSetEnvFailed = errors.New("failed to set environment variable")

// errOpenFileFailed indicates a failure to open a file for reading secrets.
var errOpenFileFailed = errors.New("failed to open secret file")

// errCloseFileFailed indicates a failure to close a file after reading secrets.
var errCloseFileFailed = errors.New("failed to close secret file")

// errReplaceSliceFailed indicates a failure to replace a slice value in a flag.
var errReplaceSliceFailed = errors.New("failed to replace slice value in flag")

// errReadFileFailed indicates a failure to read a file's contents.
var errReadFileFailed = errors.New("failed to read secret file")

// errSetFlagFailed indicates a failure to set or read a flag's value.
var errSetFlagFailed = errors.New("failed to set flag value")

// errConflictingSchedule indicates both --schedule and --interval were set.
var errConflictingSchedule = errors.New("only schedule or interval can be defined, not both")

// RegisterDockerFlags adds flags used directly by the Docker API client to the root command.
func RegisterDockerFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.StringP("host", "H", envString("DOCKER_HOST"), "daemon socket to connect to")
	flags.BoolP("tlsverify", "v", envBool("DOCKER_TLS_VERIFY"), "use TLS and verify the remote")
	flags.StringP(
		"api-version",
		"a",
		envString("DOCKER_API_VERSION"),
		"api version to use by docker client",
	)
}

// RegisterSystemFlags adds flags that control Watchless's operation to the root command.
func RegisterSystemFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.IntP(
		"interval",
		"i",
		envInt("WATCHLESS_POLL_INTERVAL"),
		"poll interval (in seconds)")

	flags.StringP(
		"schedule",
		"s",
		envString("WATCHLESS_SCHEDULE"),
		"the cron expression which defines when to check for updates")

	flags.BoolP(
		"run-once",
		"R",
		envBool("WATCHLESS_RUN_ONCE"),
		"run one check and exit")

	flags.BoolP(
		"monitor-only",
		"m",
		envBool("WATCHLESS_MONITOR_ONLY"),
		"report containers with an update available, but never apply it")

	flags.BoolP(
		"cleanup",
		"c",
		envBool("WATCHLESS_CLEANUP"),
		"remove superseded images after updating")

	flags.StringSlice(
		"exclude-name",
		envStringSlice("WATCHLESS_EXCLUDE_NAMES"),
		"container names excluded from checking (exact match)")

	flags.StringSlice(
		"exclude-image",
		envStringSlice("WATCHLESS_EXCLUDE_IMAGES"),
		"image reference substrings excluded from checking")

	flags.DurationP(
		"stop-timeout",
		"t",
		envDuration("WATCHLESS_STOP_TIMEOUT"),
		"grace period granted when stopping a container before the engine kills it")

	flags.Duration(
		"engine-timeout",
		envDuration("WATCHLESS_ENGINE_TIMEOUT"),
		"timeout for each individual engine API call")

	flags.Duration(
		"registry-timeout",
		envDuration("WATCHLESS_REGISTRY_TIMEOUT"),
		"timeout for each individual registry request")

	flags.Duration(
		"health-timeout",
		envDuration("WATCHLESS_HEALTH_TIMEOUT"),
		"how long to wait for a recreated container to report healthy (0 disables the wait)")

	flags.Int(
		"max-retries",
		envInt("WATCHLESS_MAX_RETRIES"),
		"retry attempts for transient registry failures")

	flags.Int(
		"concurrency",
		envInt("WATCHLESS_CONCURRENCY"),
		"maximum simultaneous registry digest lookups")

	flags.String(
		"on-busy",
		envString("WATCHLESS_ON_BUSY"),
		"what to do with a run trigger while a run is in flight (drop, queue)")

	flags.Bool(
		"no-startup-message",
		envBool("WATCHLESS_NO_STARTUP_MESSAGE"),
		"do not send a startup message")

	flags.Bool(
		"http-api-update",
		envBool("WATCHLESS_HTTP_API_UPDATE"),
		"runs Watchless with an HTTP API that triggers a run on request")

	flags.Bool(
		"http-api-metrics",
		envBool("WATCHLESS_HTTP_API_METRICS"),
		"serve Prometheus metrics over the HTTP API")

	flags.String(
		"http-api-port",
		envString("WATCHLESS_HTTP_API_PORT"),
		"port to bind the HTTP API to")

	flags.String(
		"http-api-token",
		envString("WATCHLESS_HTTP_API_TOKEN"),
		"token authenticating HTTP API requests")

	flags.BoolP(
		"debug",
		"d",
		envBool("WATCHLESS_DEBUG"),
		"enable debug mode with verbose logging")

	flags.Bool(
		"trace",
		envBool("WATCHLESS_TRACE"),
		"enable trace mode with very verbose logging - caution: exposes credentials")

	flags.String(
		"log-level",
		envString("WATCHLESS_LOG_LEVEL"),
		"the maximum log level that will be written to STDERR (possible values: panic, fatal, error, warn, info, debug, trace)")

	flags.String(
		"log-format",
		envString("WATCHLESS_LOG_FORMAT"),
		"sets what logging format to use (possible values: Auto, LogFmt, Pretty, JSON)")

	flags.Bool(
		"no-color",
		envBool("NO_COLOR"),
		"disable ANSI color escape codes in log output")
}

// RegisterNotificationFlags adds flags that configure run summary notifications.
func RegisterNotificationFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.StringArrayP(
		"notification-url",
		"n",
		envStringSlice("WATCHLESS_NOTIFICATION_URL"),
		"notification URL to send run summaries to")

	flags.String(
		"notification-title",
		envString("WATCHLESS_NOTIFICATION_TITLE"),
		"title used for notifications on services that support one")

	flags.String(
		"notification-template",
		envString("WATCHLESS_NOTIFICATION_TEMPLATE"),
		"Go template overriding the run summary body")
}

// envString retrieves a string value from an environment variable via Viper.
func envString(key string) string {
	viper.MustBindEnv(key)

	return viper.GetString(key)
}

// envStringSlice retrieves a string slice from an environment variable via Viper.
func envStringSlice(key string) []string {
	viper.MustBindEnv(key)

	return viper.GetStringSlice(key)
}

// envInt retrieves an integer value from an environment variable via Viper.
func envInt(key string) int {
	viper.MustBindEnv(key)

	return viper.GetInt(key)
}

// envBool retrieves a boolean value from an environment variable via Viper.
func envBool(key string) bool {
	viper.MustBindEnv(key)

	return viper.GetBool(key)
}

// envDuration retrieves a duration value from an environment variable via Viper.
func envDuration(key string) time.Duration {
	viper.MustBindEnv(key)

	return viper.GetDuration(key)
}

// SetDefaults configures default values for environment variables.
// It ensures consistent fallback behavior when flags or environment variables are unset.
func SetDefaults() {
	viper.AutomaticEnv()
	viper.SetDefault("DOCKER_HOST", "unix:///var/run/docker.sock")
	viper.SetDefault("DOCKER_API_VERSION", DockerAPIMinVersion)
	viper.SetDefault("WATCHLESS_POLL_INTERVAL", defaultPollIntervalSeconds)
	viper.SetDefault("WATCHLESS_STOP_TIMEOUT", defaultStopTimeout)
	viper.SetDefault("WATCHLESS_ENGINE_TIMEOUT", defaultEngineTimeout)
	viper.SetDefault("WATCHLESS_REGISTRY_TIMEOUT", defaultRegistryTimeout)
	viper.SetDefault("WATCHLESS_MAX_RETRIES", defaultMaxRetries)
	viper.SetDefault("WATCHLESS_CONCURRENCY", defaultConcurrency)
	viper.SetDefault("WATCHLESS_ON_BUSY", string(types.OnBusyDrop))
	viper.SetDefault("WATCHLESS_HTTP_API_PORT", "8080")
	viper.SetDefault("WATCHLESS_NOTIFICATION_URL", []string{})
	viper.SetDefault("WATCHLESS_NOTIFICATION_TITLE", "Watchless")
	viper.SetDefault("WATCHLESS_LOG_LEVEL", "info")
	viper.SetDefault("WATCHLESS_LOG_FORMAT", "auto")
}

// EnvConfig sets environment variables based on Docker-related flags.
// It configures the Docker client's environment, returning an error if flag retrieval fails.
func EnvConfig(cmd *cobra.Command) error {
	var err error

	var host string

	var tls bool

	var version string

	flags := cmd.PersistentFlags()

	if host, err = flags.GetString("host"); err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if tls, err = flags.GetBool("tlsverify"); err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if version, err = flags.GetString("api-version"); err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if err = setEnvOptStr("DOCKER_HOST", host); err != nil {
		return err
	}

	if err = setEnvOptBool("DOCKER_TLS_VERIFY", tls); err != nil {
		return err
	}

	if err = setEnvOptStr("DOCKER_API_VERSION", version); err != nil {
		return err
	}

	return nil
}

// ReadConfig assembles the validated run configuration from the command's flags.
//
// Parameters:
//   - cmd: Command carrying the registered flags.
//
// Returns:
//   - types.Config: Validated configuration.
//   - error: Non-nil if a flag cannot be read or a value violates an invariant.
func ReadConfig(cmd *cobra.Command) (types.Config, error) {
	flags := cmd.PersistentFlags()

	var config types.Config

	var err error

	var monitorOnly bool

	if monitorOnly, err = flags.GetBool("monitor-only"); err != nil {
		return config, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	config.AutoUpdate = !monitorOnly

	if config.Cleanup, err = flags.GetBool("cleanup"); err != nil {
		return config, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if config.ExcludeNames, err = flags.GetStringSlice("exclude-name"); err != nil {
		return config, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if config.ExcludeImages, err = flags.GetStringSlice("exclude-image"); err != nil {
		return config, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if config.StopTimeout, err = flags.GetDuration("stop-timeout"); err != nil {
		return config, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if config.EngineTimeout, err = flags.GetDuration("engine-timeout"); err != nil {
		return config, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if config.RegistryTimeout, err = flags.GetDuration("registry-timeout"); err != nil {
		return config, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if config.HealthTimeout, err = flags.GetDuration("health-timeout"); err != nil {
		return config, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if config.MaxRetries, err = flags.GetInt("max-retries"); err != nil {
		return config, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if config.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return config, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	var onBusy string

	if onBusy, err = flags.GetString("on-busy"); err != nil {
		return config, fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	config.OnBusy = types.OnBusyPolicy(strings.ToLower(onBusy))

	if err = config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// setEnvOptStr sets an environment variable to a specified string value if needed.
// It skips setting if the value is empty or matches the current environment.
func setEnvOptStr(env string, opt string) error {
	if opt == "" || opt == os.Getenv(env) {
		return nil
	}

	if err := os.Setenv(env, opt); err != nil {
		return fmt.Errorf("%w: %s: %w", errSetEnvFailed, env, err)
	}

	return nil
}

// setEnvOptBool sets an environment variable to "1" if the boolean is true.
func setEnvOptBool(env string, opt bool) error {
	if opt {
		return setEnvOptStr(env, "1")
	}

	return nil
}

// GetSecretsFromFiles replaces flag values with file contents if they reference files.
// It processes a predefined list of secret-related flags, updating their values accordingly.
func GetSecretsFromFiles(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()

	secrets := []string{
		"notification-url",
		"http-api-token",
	}
	for _, secret := range secrets {
		if err := getSecretFromFile(flags, secret); err != nil {
			logrus.Fatalf("failed to get secret from flag %v: %s", secret, err)
		}
	}
}

// getSecretFromFile updates a flag's value with file contents if it references a file.
// It handles both string and slice flags, returning an error if file operations fail.
func getSecretFromFile(flags *pflag.FlagSet, secret string) error {
	flag := flags.Lookup(secret)
	if sliceValue, ok := flag.Value.(pflag.SliceValue); ok {
		oldValues := sliceValue.GetSlice()
		values := make([]string, 0, len(oldValues))

		for _, value := range oldValues {
			if value != "" && isFilePath(value) {
				file, err := flagsFs.Open(value)
				if err != nil {
					return fmt.Errorf("%w: %w", errOpenFileFailed, err)
				}

				scanner := bufio.NewScanner(file)
				for scanner.Scan() {
					line := scanner.Text()
					if line == "" {
						continue
					}

					values = append(values, line)
				}

				if err := file.Close(); err != nil {
					return fmt.Errorf("%w: %w", errCloseFileFailed, err)
				}
			} else {
				values = append(values, value)
			}
		}

		if err := sliceValue.Replace(values); err != nil {
			return fmt.Errorf("%w: %w", errReplaceSliceFailed, err)
		}

		return nil
	}

	value := flag.Value.String()
	if value != "" && isFilePath(value) {
		content, err := afero.ReadFile(flagsFs, value)
		if err != nil {
			return fmt.Errorf("%w: %w", errReadFileFailed, err)
		}

		if err := flags.Set(secret, strings.TrimSpace(string(content))); err != nil {
			return fmt.Errorf("%w: %w", errSetFlagFailed, err)
		}
	}

	return nil
}

// isFilePath determines if a string likely represents a file path.
// It checks for file existence, avoiding false positives from URLs.
func isFilePath(path string) bool {
	firstColon := strings.IndexRune(path, ':')
	if firstColon != 1 && firstColon != -1 {
		// If ':' exists but isn't the second character, it's likely not a file path (e.g., URLs).
		return false
	}

	_, err := flagsFs.Stat(path)

	return !errors.Is(err, os.ErrNotExist)
}

// ProcessFlagAliases synchronizes flag values based on helper flags and environment settings.
// It reconciles schedule and interval and maps debug/trace onto the log level.
func ProcessFlagAliases(flags *pflag.FlagSet) error {
	scheduleChanged := flags.Changed("schedule")
	intervalChanged := flags.Changed("interval")
	// Viper-sourced defaults do not mark flags as changed, so compare values too.
	if val, _ := flags.GetString("schedule"); val != "" {
		scheduleChanged = true
	}

	if val, _ := flags.GetInt("interval"); val != defaultPollIntervalSeconds {
		intervalChanged = true
	}

	if intervalChanged && scheduleChanged {
		return errConflictingSchedule
	}

	// Update schedule to match interval or default if needed.
	if intervalChanged || !scheduleChanged {
		interval, _ := flags.GetInt("interval")
		if err := flags.Set("schedule", fmt.Sprintf("@every %ds", interval)); err != nil {
			return fmt.Errorf("%w: %w", errSetFlagFailed, err)
		}
	}

	if flagIsEnabled(flags, "debug") {
		if err := flags.Set("log-level", "debug"); err != nil {
			return fmt.Errorf("%w: %w", errSetFlagFailed, err)
		}
	}

	if flagIsEnabled(flags, "trace") {
		if err := flags.Set("log-level", "trace"); err != nil {
			return fmt.Errorf("%w: %w", errSetFlagFailed, err)
		}
	}

	return nil
}

// SetupLogging configures the global logger based on log-related flags.
// It sets the log format and level, returning an error for invalid configurations.
func SetupLogging(flags *pflag.FlagSet) error {
	logFormat, err := flags.GetString("log-format")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	noColor, err := flags.GetBool("no-color")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	if err := configureLogFormat(logFormat, noColor); err != nil {
		return err
	}

	rawLogLevel, err := flags.GetString("log-level")
	if err != nil {
		return fmt.Errorf("%w: %w", errSetFlagFailed, err)
	}

	logLevel, err := logrus.ParseLevel(rawLogLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidLogLevel, err)
	}

	logrus.SetLevel(logLevel)

	return nil
}

// configureLogFormat sets the logrus formatter based on the specified format and color preference.
// It returns an error if the format is invalid.
func configureLogFormat(logFormat string, noColor bool) error {
	switch strings.ToLower(logFormat) {
	case "auto":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors:             noColor,
			EnvironmentOverrideColors: true,
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "logfmt":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	case "pretty":
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !noColor,
			FullTimestamp: false,
		})
	default:
		return fmt.Errorf("%w: %s", errInvalidLogFormat, logFormat)
	}

	return nil
}

// flagIsEnabled checks if a boolean flag is set to true.
// It exits with a fatal error if the flag is not defined.
func flagIsEnabled(flags *pflag.FlagSet, name string) bool {
	value, err := flags.GetBool(name)
	if err != nil {
		logrus.Fatalf("The flag %q is not defined", name)
	}

	return value
}
