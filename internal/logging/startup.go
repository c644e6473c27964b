// Package logging logs startup information: version, notification channels,
// filtering, and schedule details.
package logging

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/watchless/watchless/internal/util"
)

// StartupInfo carries everything the startup message reports.
type StartupInfo struct {
	Version          string
	DockerAPIVersion string
	Filtering        string
	FirstRun         time.Time
	RunOnce          bool
	NotificationURLs []string
	HTTPAPIAddr      string
}

// WriteStartupMessage logs the startup overview: version, notification
// setup, container filtering, scheduling, and HTTP API status.
func WriteStartupMessage(info StartupInfo) {
	startupLog := logrus.NewEntry(logrus.StandardLogger())

	startupLog.Info("Watchless ", info.Version, " using Docker API v", info.DockerAPIVersion)

	logNotifierInfo(startupLog, info.NotificationURLs)

	startupLog.Debug(info.Filtering)

	logScheduleInfo(startupLog, info.FirstRun, info.RunOnce)

	if info.HTTPAPIAddr != "" {
		startupLog.Info("The HTTP API is enabled at " + info.HTTPAPIAddr)
	}

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		startupLog.Warn(
			"Trace level enabled: log will include sensitive information as credentials and tokens",
		)
	}
}

// logNotifierInfo reports the configured notification services by scheme,
// never logging the URLs themselves.
func logNotifierInfo(log *logrus.Entry, urls []string) {
	if len(urls) == 0 {
		log.Info("Using no notifications")

		return
	}

	schemes := make([]string, 0, len(urls))

	for _, url := range urls {
		scheme, _, found := strings.Cut(url, ":")
		if !found || scheme == "" {
			scheme = "invalid"
		}

		schemes = append(schemes, scheme)
	}

	log.Info("Using notifications: " + strings.Join(schemes, ", "))
}

// logScheduleInfo reports when the next run will happen.
func logScheduleInfo(log *logrus.Entry, firstRun time.Time, runOnce bool) {
	switch {
	case runOnce:
		log.Info("Running a one time update.")
	case !firstRun.IsZero():
		until := util.FormatDuration(time.Until(firstRun))
		log.Info("Scheduling first run: " + firstRun.Format("2006-01-02 15:04:05 -0700 MST"))
		log.Info("Note that the first check will be performed in " + until)
	default:
		log.Info("Periodic updates are enabled with default schedule.")
	}
}
