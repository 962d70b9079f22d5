package email

import (
	"context"
	"log/slog"
	"time"

	"mentorship/internal/external"
	"mentorship/internal/types"
)

// Message is one outgoing email with pre-rendered content.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// NewMessage addresses a rendered email to to.
func NewMessage(to string, rendered *RenderedEmail) Message {
	return Message{
		To:      to,
		Subject: rendered.Subject,
		HTML:    rendered.BodyHTML,
		Text:    rendered.BodyText,
	}
}

// Dispatcher sends messages from the configured sender through an
// EmailProvider. It performs no retries; a failed send is reported to the
// caller as-is.
type Dispatcher struct {
	provider external.EmailProvider
	sender   types.SenderIdentity
	logger   *slog.Logger
}

// DispatcherConfig holds the dependencies needed to create a Dispatcher.
type DispatcherConfig struct {
	Provider external.EmailProvider
	Sender   types.SenderIdentity
	Logger   *slog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		provider: cfg.Provider,
		sender:   cfg.Sender,
		logger:   logger,
	}
}

// Send transmits msg and returns the provider message id. Errors are always
// *types.AppError.
func (d *Dispatcher) Send(ctx context.Context, msg Message) (string, error) {
	submissionID := types.GetSubmissionID(ctx)
	logger := d.logger.With(
		"to", RedactEmail(msg.To),
		"subject", msg.Subject,
		"submission_id", submissionID,
	)

	start := time.Now()
	msgID, err := d.provider.Send(ctx, types.SendInput{
		To:          msg.To,
		From:        d.sender,
		Subject:     msg.Subject,
		BodyHTML:    msg.HTML,
		BodyText:    msg.Text,
		ReferenceID: submissionID,
	})
	if err != nil {
		err = asAppError(err)
		if IsBlocklistError(err) {
			logger.WarnContext(ctx, "email rejected by provider", "error", err)
		} else {
			logger.ErrorContext(ctx, "email send failed", "error", err, "duration", time.Since(start))
		}
		return "", err
	}

	logger.InfoContext(ctx, "email sent", "provider_message_id", msgID, "duration", time.Since(start))
	return msgID, nil
}
