package types

import "context"

type contextKey string

const (
	requestIDKey    contextKey = "request_id"
	submissionIDKey contextKey = "submission_id"
)

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithSubmissionID stores the submission ID in the context so that vendor
// adapters can tag outbound calls with it.
func WithSubmissionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, submissionIDKey, id)
}

// GetSubmissionID retrieves the submission ID from the context.
func GetSubmissionID(ctx context.Context) string {
	id, _ := ctx.Value(submissionIDKey).(string)
	return id
}
