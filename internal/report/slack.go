package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/lumenforge/insight/internal/models"
)

// SlackAPI abstracts the Slack client for testing.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts the daily report into an admin channel.
type SlackNotifier struct {
	api     SlackAPI
	channel string
	logger  zerolog.Logger
}

// NewSlackNotifier creates a notifier for the given channel.
func NewSlackNotifier(botToken, channel string, logger zerolog.Logger) *SlackNotifier {
	return &SlackNotifier{
		api:     slack.New(botToken),
		channel: channel,
		logger:  logger.With().Str("component", "report.slack").Logger(),
	}
}

// NewSlackNotifierWithAPI wires a custom API implementation (tests).
func NewSlackNotifierWithAPI(api SlackAPI, channel string, logger zerolog.Logger) *SlackNotifier {
	return &SlackNotifier{api: api, channel: channel, logger: logger}
}

// Deliver posts the formatted report.
func (n *SlackNotifier) Deliver(ctx context.Context, report models.DailyReport) error {
	_, _, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(FormatReport(report), false))
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	n.logger.Info().Str("date", report.Date).Str("channel", n.channel).Msg("report delivered")
	return nil
}

// FormatReport renders the report as Slack mrkdwn.
func FormatReport(r models.DailyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Daily Improvement Report — %s*\n", r.Date)
	fmt.Fprintf(&b, "Health score: *%.1f/100*\n", r.HealthScore)
	fmt.Fprintf(&b, "Sessions analyzed: %d | Errors: %d | New suggestions: %d (high priority: %d)\n",
		r.Sessions.SessionsAnalyzed, r.Sessions.ErrorsTotal, r.SuggestionsTotal, r.HighPriority)

	if len(r.TopSuggestions) > 0 {
		b.WriteString("\n*Top pending suggestions*\n")
		for _, sg := range r.TopSuggestions {
			fmt.Fprintf(&b, "• [P%d] %s (%s)\n", sg.Priority, sg.Title, sg.Category)
		}
	}
	if len(r.Recommendations) > 0 {
		b.WriteString("\n*Recommendations*\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "• %s\n", rec)
		}
	}
	return b.String()
}
