// Package notifications delivers run summaries to the configured channels
// over Shoutrrr service URLs (email, ntfy, gotify, teams, slack, and the
// rest of the Shoutrrr catalog).
package notifications

import (
	"fmt"
	"log"
	"strings"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/sirupsen/logrus"

	shoutrrrTypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/watchless/watchless/pkg/types"
)

// router abstracts the Shoutrrr sender for tests.
type router interface {
	Send(message string, params *shoutrrrTypes.Params) []error
}

// notifier implements types.Notifier over a Shoutrrr router.
//
// Summaries are rendered and sent from a dedicated goroutine so a slow
// notification service never delays the next run. One channel's delivery
// failure is logged and never affects the other channels.
type notifier struct {
	urls     []string
	router   router
	template *summaryTemplate
	params   *shoutrrrTypes.Params
	messages chan string
	done     chan struct{}
}

// NewNotifier creates a notifier sending to the given Shoutrrr URLs.
//
// Parameters:
//   - urls: Shoutrrr service URLs; empty yields a no-op notifier.
//   - title: Notification title for services that support one.
//   - templateString: Custom summary template, empty for the default.
//
// Returns:
//   - types.Notifier: Ready notifier.
//   - error: Non-nil if a URL is unsupported or the template is invalid.
func NewNotifier(urls []string, title, templateString string) (types.Notifier, error) {
	template, err := newSummaryTemplate(templateString)
	if err != nil {
		return nil, err
	}

	if len(urls) == 0 {
		return &noopNotifier{}, nil
	}

	logger := log.New(logrus.StandardLogger().WriterLevel(logrus.TraceLevel), "Shoutrrr: ", 0)

	sender, err := shoutrrr.NewSender(logger, urls...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notification sender: %w", err)
	}

	params := &shoutrrrTypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}

	n := &notifier{
		urls:     urls,
		router:   sender,
		template: template,
		params:   params,
		messages: make(chan string, 1),
		done:     make(chan struct{}),
	}

	go n.deliver()

	return n, nil
}

// SendSummary renders the report and queues it for delivery. An empty
// rendering (e.g., a template that skips uneventful runs) sends nothing.
func (n *notifier) SendSummary(report types.Report) {
	message, err := n.template.Render(report)
	if err != nil {
		logrus.WithError(err).Error("Failed to render run summary notification")

		return
	}

	if message == "" {
		logrus.Debug("Run summary rendered empty, skipping notification")

		return
	}

	n.messages <- message
}

// Close drains queued messages and stops the delivery goroutine.
func (n *notifier) Close() {
	close(n.messages)
	<-n.done
}

// deliver sends queued messages, isolating per-URL failures.
func (n *notifier) deliver() {
	defer close(n.done)

	for message := range n.messages {
		for i, err := range n.router.Send(message, n.params) {
			if err == nil {
				continue
			}

			logrus.WithFields(logrus.Fields{
				"service": serviceScheme(n.urls, i),
				"index":   i,
			}).WithError(err).Error("Failed to send notification")
		}
	}
}

// serviceScheme names the service behind a send slot for error logs.
func serviceScheme(urls []string, index int) string {
	if index >= len(urls) {
		return "unknown"
	}

	scheme, _, found := strings.Cut(urls[index], ":")
	if !found || scheme == "" {
		return "invalid"
	}

	return scheme
}

// noopNotifier satisfies types.Notifier when no URLs are configured.
type noopNotifier struct{}

// SendSummary discards the report.
func (noopNotifier) SendSummary(types.Report) {}

// Close is a no-op.
func (noopNotifier) Close() {}
