package external

import (
	"context"

	"mentorship/internal/types"
)

// EmailProvider transmits one pre-rendered email. Implementations never
// inspect or alter the content.
type EmailProvider interface {
	// Send returns the provider's message id on success.
	Send(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}

// RowAppender appends one row of cell values to a spreadsheet range.
type RowAppender interface {
	AppendRow(ctx context.Context, rng string, values []string) (AppendResult, error)
}

// AppendResult reports where a row landed.
type AppendResult struct {
	UpdatedRange string
	UpdatedRows  int
}

// HealthChecker is a dependency that can report its own reachability.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}
