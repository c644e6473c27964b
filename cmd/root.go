package cmd

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/watchless/watchless/internal/actions"
	internalApi "github.com/watchless/watchless/internal/api"
	"github.com/watchless/watchless/internal/flags"
	"github.com/watchless/watchless/internal/logging"
	"github.com/watchless/watchless/internal/meta"
	"github.com/watchless/watchless/internal/scheduling"
	"github.com/watchless/watchless/pkg/api"
	"github.com/watchless/watchless/pkg/engine"
	"github.com/watchless/watchless/pkg/filters"
	"github.com/watchless/watchless/pkg/metrics"
	"github.com/watchless/watchless/pkg/notifications"
	"github.com/watchless/watchless/pkg/registry/digest"
)

var rootCmd = NewRootCommand()

// NewRootCommand creates and configures the root command for the Watchless CLI.
func NewRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "watchless",
		Short:  "Automatically updates running Docker containers",
		Long:   "\nWatchless monitors running Docker containers and updates them when a newer image is published to their registry.",
		Run:    run,
		PreRun: preRun,
		Args:   cobra.NoArgs,
	}
}

func init() {
	flags.SetDefaults()
	flags.RegisterDockerFlags(rootCmd)
	flags.RegisterSystemFlags(rootCmd)
	flags.RegisterNotificationFlags(rootCmd)
}

// Execute runs the root command and exits on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("Failed to execute root command")
	}
}

// preRun prepares logging, secrets, and the Docker environment before run.
func preRun(cmd *cobra.Command, _ []string) {
	flagsSet := cmd.PersistentFlags()

	if err := flags.ProcessFlagAliases(flagsSet); err != nil {
		logrus.WithError(err).Fatal("Failed to process flag aliases")
	}

	if err := flags.SetupLogging(flagsSet); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logging")
	}

	flags.GetSecretsFromFiles(cmd)

	if err := flags.EnvConfig(cmd); err != nil {
		logrus.WithError(err).Fatal("Failed to configure Docker environment")
	}
}

// run wires the client, resolver, runner, notifier, metrics, and scheduler
// together and blocks until shutdown.
func run(c *cobra.Command, _ []string) {
	flagsSet := c.PersistentFlags()

	config, err := flags.ReadConfig(c)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	client, err := engine.NewClient(engine.ClientOptions{
		StopTimeout:   config.StopTimeout,
		EngineTimeout: config.EngineTimeout,
		HealthTimeout: config.HealthTimeout,
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize container engine client")
	}

	resolver := digest.NewResolver(
		digest.WithTimeout(config.RegistryTimeout),
		digest.WithMaxAttempts(config.MaxRetries+1),
	)

	filter, filterDesc := filters.BuildFilter(config.ExcludeNames, config.ExcludeImages)
	runner := actions.NewRunner(client, resolver, config, filter)

	notificationURLs, _ := flagsSet.GetStringArray("notification-url")
	notificationTitle, _ := flagsSet.GetString("notification-title")
	notificationTemplate, _ := flagsSet.GetString("notification-template")

	notifier, err := notifications.NewNotifier(
		notificationURLs,
		notificationTitle,
		notificationTemplate,
	)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize notifications")
	}

	m := metrics.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runOnce, _ := flagsSet.GetBool("run-once")
	noStartupMessage, _ := flagsSet.GetBool("no-startup-message")
	scheduleSpec, _ := flagsSet.GetString("schedule")

	enableUpdateAPI, _ := flagsSet.GetBool("http-api-update")
	enableMetricsAPI, _ := flagsSet.GetBool("http-api-metrics")
	apiPort, _ := flagsSet.GetString("http-api-port")
	apiToken, _ := flagsSet.GetString("http-api-token")

	apiAddr := ""
	if enableUpdateAPI || enableMetricsAPI {
		apiAddr = api.Addr("", apiPort)
	}

	if !noStartupMessage {
		logging.WriteStartupMessage(logging.StartupInfo{
			Version:          meta.Version,
			DockerAPIVersion: client.APIVersion(),
			Filtering:        filterDesc,
			RunOnce:          runOnce,
			NotificationURLs: notificationURLs,
			HTTPAPIAddr:      apiAddr,
		})
	}

	if runOnce {
		if err := scheduling.RunOnce(ctx, runner.Trigger, notifier, m); err != nil {
			logrus.WithError(err).Error("Run failed")
			os.Exit(1)
		}

		return
	}

	err = internalApi.SetupAndStart(ctx, internalApi.Options{
		Port:         apiPort,
		Token:        apiToken,
		EnableUpdate: enableUpdateAPI,
		EnableMetric: enableMetricsAPI,
	}, runner.Trigger)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to start HTTP API")
	}

	err = scheduling.RunOnSchedule(ctx, scheduleSpec, runner.Trigger, notifier, m, noStartupMessage)
	if err != nil {
		logrus.WithError(err).Fatal("Scheduler failed")
	}
}
