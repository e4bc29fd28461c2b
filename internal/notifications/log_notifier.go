package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier stands in for a real mail sender: it records that a reset
// mail would have gone out. Neither the ticket nor the link carrying it is
// logged.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, input SendPasswordResetInput) error {
	n.log.InfoContext(ctx, "password_reset_mail",
		"email", input.Email,
		"name", input.Name,
		"reset_url_len", len(input.ResetURL),
	)

	return nil
}
