package notifier

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Notifier delivers formatted messages.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// LogNotifier writes messages to the log. Used when Telegram is not configured.
type LogNotifier struct{}

func (LogNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	log.Info().Str("channel", "log").Msg(text)
	return nil
}
