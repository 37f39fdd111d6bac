package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Slack posts summaries to a channel with a bot token.
type Slack struct {
	api     *slack.Client
	channel string
}

// NewSlack creates a Slack notifier. apiURL overrides the Slack Web API
// base URL and may be empty.
func NewSlack(botToken, channel, apiURL string) *Slack {
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &Slack{
		api:     slack.New(botToken, opts...),
		channel: channel,
	}
}

// Name returns the notifier name.
func (s *Slack) Name() string { return "slack" }

func (s *Slack) Notify(ctx context.Context, msg Message) error {
	icon := ":white_check_mark:"
	if msg.Summary.Failed > 0 {
		icon = ":warning:"
	}
	header := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("%s *llmproc finished*: %d/%d succeeded", icon, msg.Summary.Succeeded, msg.Summary.Total),
			false, false),
		nil, nil)
	details := slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("Run `%s` | Input `%s` | Output `%s`", msg.RunID, msg.Input, msg.Output),
			false, false),
	)

	_, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionBlocks(header, details),
		slack.MsgOptionText(msg.Text(), false),
	)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", s.channel, err)
	}
	return nil
}
