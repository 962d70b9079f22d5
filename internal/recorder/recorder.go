// Package recorder appends one spreadsheet row per submission. Recording is
// best effort: nothing here can fail a submission.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mentorship/internal/external"
	"mentorship/internal/types"
)

// Outcomes reported to Metrics.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// ExperienceFallback fills the experience column when it was left blank.
const ExperienceFallback = "None"

// Metrics receives one observation per Record call.
type Metrics interface {
	RecordSheetsAppend(variant, outcome string)
}

// Config holds the parameters needed to construct a Recorder.
type Config struct {
	// Factory builds the Sheets client. Nil disables recording.
	Factory external.SheetsFactory
	// Ranges maps each variant to its A1 range. A variant without a range is
	// not recorded.
	Ranges   map[types.FormVariant]string
	Location *time.Location
	// Timeout bounds each Record call, client initialization included.
	// Zero means no bound.
	Timeout time.Duration
	Metrics Metrics
	Logger  *slog.Logger
}

// Recorder owns the process-wide Sheets client. The client is built on the
// first submission that needs it and kept until exit; concurrent first
// submissions share a single initialization. A failed initialization is not
// cached, so the next submission tries again.
type Recorder struct {
	factory external.SheetsFactory
	ranges  map[types.FormVariant]string
	loc     *time.Location
	timeout time.Duration
	metrics Metrics
	logger  *slog.Logger

	init   singleflight.Group
	mu     sync.Mutex
	client external.RowAppender
}

// New creates a Recorder.
func New(cfg Config) *Recorder {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		factory: cfg.Factory,
		ranges:  cfg.Ranges,
		loc:     loc,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
		logger:  logger.With("component", "recorder"),
	}
}

// Enabled reports whether variant would be recorded.
func (r *Recorder) Enabled(variant types.FormVariant) bool {
	return r.factory != nil && r.ranges[variant] != ""
}

// Record appends app as one row. Every failure is logged and swallowed.
func (r *Recorder) Record(ctx context.Context, app types.Application) {
	logger := r.logger.With("submission_id", app.SubmissionID, "variant", app.Variant)

	if !r.Enabled(app.Variant) {
		logger.InfoContext(ctx, "skipping spreadsheet: not configured")
		r.observe(app.Variant, OutcomeSkipped)
		return
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	client, err := r.sheetsClient(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "spreadsheet client initialization failed", "error", err)
		r.observe(app.Variant, OutcomeFailed)
		return
	}

	rng := r.ranges[app.Variant]
	res, err := client.AppendRow(ctx, rng, BuildRow(app, r.loc))
	if err != nil {
		logger.ErrorContext(ctx, "spreadsheet append failed", "range", rng, "error", err)
		r.observe(app.Variant, OutcomeFailed)
		return
	}

	logger.InfoContext(ctx, "row added to spreadsheet", "updated_range", res.UpdatedRange)
	r.observe(app.Variant, OutcomeOK)
}

func (r *Recorder) sheetsClient(ctx context.Context) (external.RowAppender, error) {
	r.mu.Lock()
	client := r.client
	r.mu.Unlock()
	if client != nil {
		return client, nil
	}

	ch := r.init.DoChan("sheets", func() (any, error) {
		r.mu.Lock()
		cached := r.client
		r.mu.Unlock()
		if cached != nil {
			return cached, nil
		}

		built, err := r.factory(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.client = built
		r.mu.Unlock()
		r.logger.InfoContext(ctx, "spreadsheet integration enabled")
		return built, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(external.RowAppender), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Recorder) observe(variant types.FormVariant, outcome string) {
	if r.metrics != nil {
		r.metrics.RecordSheetsAppend(string(variant), outcome)
	}
}

// BuildRow lays out app in column order for its variant.
//
//	extended: timestamp, name, email, phone, college, year, why, expectations, experience, commitment
//	simple:   timestamp, name, email, whatsapp, role
func BuildRow(app types.Application, loc *time.Location) []string {
	timestamp := app.ReceivedAt.In(loc).Format(types.LocaleTimestampLayout)

	if app.Variant == types.FormSimple {
		return []string{timestamp, app.Name, app.Email, app.Phone, app.Role}
	}

	return []string{
		timestamp,
		app.Name,
		app.Email,
		app.Phone,
		app.College,
		app.Year,
		app.Why,
		app.Expectations,
		app.ExperienceOr(ExperienceFallback),
		app.CommitmentLabel(),
	}
}
