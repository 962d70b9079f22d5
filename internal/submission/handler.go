// Package submission serves the application forms: it validates the
// submission, renders both emails and fans out the two sends and the
// spreadsheet append.
package submission

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mentorship/internal/core"
	"mentorship/internal/metrics"
	"mentorship/internal/notifications/email"
	"mentorship/internal/types"
)

// Mailer sends one rendered message.
type Mailer interface {
	Send(ctx context.Context, msg email.Message) (string, error)
}

// Renderer builds the two messages for an application.
type Renderer interface {
	AdminNotification(app types.Application) (*email.RenderedEmail, error)
	Welcome(app types.Application) (*email.RenderedEmail, error)
}

// Recorder appends the application to the spreadsheet. It never fails.
type Recorder interface {
	Record(ctx context.Context, app types.Application)
}

// Metrics receives the outcome of every submission.
type Metrics interface {
	RecordSubmission(variant, outcome string)
}

// Handler processes submissions for every mounted form variant.
type Handler struct {
	mailer       Mailer
	renderer     Renderer
	recorder     Recorder
	validator    *core.Validator
	metrics      Metrics
	adminAddress string
	timeout      time.Duration
	logger       *slog.Logger

	now   func() time.Time
	newID func() string
}

// Config holds the dependencies needed to create a Handler.
type Config struct {
	Mailer    Mailer
	Renderer  Renderer
	Recorder  Recorder
	Validator *core.Validator
	Metrics   Metrics // optional
	// AdminAddress receives the notification for every submission.
	AdminAddress string
	// Timeout bounds the whole fan-out. Zero means no bound.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) *Handler {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		mailer:       cfg.Mailer,
		renderer:     cfg.Renderer,
		recorder:     cfg.Recorder,
		validator:    cfg.Validator,
		metrics:      m,
		adminAddress: cfg.AdminAddress,
		timeout:      cfg.Timeout,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Routes mounts one endpoint per variant. Every method is routed to the
// handler so the method guard answers with the form's own envelope.
func (h *Handler) Routes(vs []Variant) core.RouteRegistrar {
	return func(r chi.Router) {
		for _, v := range vs {
			r.HandleFunc(v.Path, h.Serve(v))
		}
	}
}

// Serve returns the HTTP handler for one variant.
func (h *Handler) Serve(v Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			core.SetCORSHeaders(w.Header())
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			core.JSON(w, r, http.StatusMethodNotAllowed,
				core.Envelope{Success: false, Message: core.MethodNotAllowedMessage})
			return
		}

		app, err := h.decode(w, r, v)
		if err != nil {
			h.logger.InfoContext(r.Context(), "submission rejected",
				"variant", v.Name, "request_id", types.GetRequestID(r.Context()), "error", err)
			h.metrics.RecordSubmission(string(v.Name), metrics.SubmissionInvalid)
			core.Error(w, r, err)
			return
		}

		if err := h.Process(r.Context(), app); err != nil {
			h.metrics.RecordSubmission(string(v.Name), metrics.SubmissionFailed)
			core.JSON(w, r, http.StatusInternalServerError,
				core.Envelope{Success: false, Message: core.FailureMessage})
			return
		}

		h.metrics.RecordSubmission(string(v.Name), metrics.SubmissionSubmitted)
		core.JSON(w, r, http.StatusOK, core.Envelope{Success: true, Message: core.SuccessMessage})
	}
}

// decode reads a JSON or form-encoded body into the variant's schema and
// validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v Variant) (types.Application, error) {
	req := v.newRequest()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := core.ParseForm(w, r); err != nil {
			return types.Application{}, err
		}
		req.fromForm(r.PostForm)
	default:
		if err := core.DecodeJSON(w, r, req); err != nil {
			return types.Application{}, err
		}
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return types.Application{}, err
	}

	app := req.toApplication()
	app.SubmissionID = h.newID()
	app.ReceivedAt = h.now()
	return app, nil
}

// Process renders both emails, then sends them and records the row
// concurrently, waiting for all three. Only a failed send is an error; the
// row is best effort. Cancellation of ctx is ignored; the handler's own
// timeout bounds the work instead.
func (h *Handler) Process(ctx context.Context, app types.Application) error {
	ctx = types.WithSubmissionID(context.WithoutCancel(ctx), app.SubmissionID)
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	logger := h.logger.With(
		"submission_id", app.SubmissionID,
		"variant", app.Variant,
		"applicant", email.RedactEmail(app.Email),
	)

	admin, err := h.renderer.AdminNotification(app)
	if err != nil {
		logger.ErrorContext(ctx, "failed to render admin notification", "error", err)
		return err
	}
	welcome, err := h.renderer.Welcome(app)
	if err != nil {
		logger.ErrorContext(ctx, "failed to render welcome email", "error", err)
		return err
	}

	start := time.Now()
	var g errgroup.Group
	g.Go(guard("admin notification", func() error {
		_, err := h.mailer.Send(ctx, email.NewMessage(h.adminAddress, admin))
		return err
	}))
	g.Go(guard("welcome email", func() error {
		_, err := h.mailer.Send(ctx, email.NewMessage(app.Email, welcome))
		return err
	}))
	g.Go(func() error {
		err := guard("spreadsheet append", func() error {
			h.recorder.Record(ctx, app)
			return nil
		})()
		if err != nil {
			logger.ErrorContext(ctx, "spreadsheet recorder failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.ErrorContext(ctx, "error processing application", "error", err, "duration", time.Since(start))
		return err
	}

	logger.InfoContext(ctx, "application submitted", "duration", time.Since(start))
	return nil
}

// guard converts a panic in a fan-out task into an error; the recoverer
// middleware only sees panics on the request goroutine.
func guard(task string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = types.NewAppError(types.ErrCodeInternalUnexpected,
					fmt.Sprintf("panic in %s: %v", task, rec), nil)
			}
		}()
		return fn()
	}
}
