package daemon

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/slack-go/slack"
)

// LeakNotifier is told about a daemon that outlived its cancellation
// timeout and was abandoned: its goroutine is still running, leaked,
// with nothing left supervising it. The default implementation only
// logs; SlackLeakNotifier additionally posts to a channel so an
// abandoned daemon does not go unnoticed in a noisy log stream.
type LeakNotifier interface {
	NotifyLeak(ctx context.Context, resource ResourceID, handler ID)
}

// LoggingLeakNotifier logs an error-level record for every leak. It is
// the default used when no richer notifier is configured.
type LoggingLeakNotifier struct {
	Logger logr.Logger
}

func (n LoggingLeakNotifier) NotifyLeak(_ context.Context, resource ResourceID, handler ID) {
	n.Logger.Error(nil, "daemon abandoned: exceeded cancellation timeout, goroutine leaked",
		"resource", resource.String(), "daemon", string(handler), "leak_id", uuid.NewString())
}

// SlackLeakNotifier additionally posts an abandonment notice to a Slack
// channel, for operators who want a page-able signal distinct from log
// aggregation.
type SlackLeakNotifier struct {
	Client  *slack.Client
	Channel string
	Logger  logr.Logger
}

// NewSlackLeakNotifier builds a notifier posting to channel using token.
func NewSlackLeakNotifier(token, channel string, logger logr.Logger) *SlackLeakNotifier {
	return &SlackLeakNotifier{Client: slack.New(token), Channel: channel, Logger: logger}
}

func (n *SlackLeakNotifier) NotifyLeak(ctx context.Context, resource ResourceID, handler ID) {
	leakID := uuid.NewString()
	text := fmt.Sprintf(":warning: daemon `%s` for resource `%s` was abandoned after exceeding its cancellation timeout and is still running (leak `%s`)", handler, resource.String(), leakID)
	if _, _, err := n.Client.PostMessageContext(ctx, n.Channel, slack.MsgOptionText(text, false)); err != nil {
		n.Logger.Error(err, "failed to post daemon leak notification to slack",
			"resource", resource.String(), "daemon", string(handler), "leak_id", leakID)
	}
}
