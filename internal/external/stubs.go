package external

import (
	"context"
	"fmt"
	"log/slog"

	"mentorship/internal/types"
)

// StubEmailProvider logs each message instead of sending it. It backs
// IS_TEST_MODE so the service boots without relay or vendor credentials.
type StubEmailProvider struct {
	logger *slog.Logger
}

// NewStubEmailProvider creates a new StubEmailProvider.
func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	s.logger.InfoContext(ctx, "stub: email not sent",
		"subject", input.Subject,
		"from", input.From.Address,
		"submission_id", input.ReferenceID,
		"html_bytes", len(input.BodyHTML),
		"text_bytes", len(input.BodyText),
	)
	return fmt.Sprintf("msg_stub_%s", input.ReferenceID), nil
}

// StubRowAppender logs rows instead of appending them.
type StubRowAppender struct {
	logger *slog.Logger
}

// NewStubRowAppender creates a new StubRowAppender.
func NewStubRowAppender(logger *slog.Logger) *StubRowAppender {
	return &StubRowAppender{logger: logger}
}

func (s *StubRowAppender) AppendRow(ctx context.Context, rng string, values []string) (AppendResult, error) {
	s.logger.InfoContext(ctx, "stub: sheet row not appended", "range", rng, "cells", len(values))
	return AppendResult{UpdatedRange: rng, UpdatedRows: 1}, nil
}

var (
	_ EmailProvider = (*StubEmailProvider)(nil)
	_ RowAppender   = (*StubRowAppender)(nil)
)
