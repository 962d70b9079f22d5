package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"mentorship/internal/types"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// Subjects of the three messages. The welcome subject is prefixed to the
// brand name.
const (
	SubjectAdminExtended = "🎯 New Mentorship Application"
	SubjectAdminSimple   = "New Mentorship Application"
	subjectWelcomePrefix = "Welcome to "
)

// Fallback copy for optional fields in the admin notification.
const (
	ExperienceFallback = "None mentioned"
	CommitmentYes      = "✅ Yes - Ready to commit"
	CommitmentNo       = "❌ No"
)

// RenderedEmail holds the pre-rendered email content ready for transmission.
type RenderedEmail struct {
	Subject  string
	BodyHTML string
	BodyText string
}

// templateData is passed to every template. html/template escapes each
// field for its context, so applicant input never reaches the HTML raw.
type templateData struct {
	App        types.Application
	Subject    string
	Brand      string
	LogoLead   string
	LogoAccent string
	Experience string
	Commitment string
	ReceivedAt string
	Year       int
}

type templatePair struct {
	html *template.Template
	text *texttemplate.Template
}

// Renderer builds the admin notification and the applicant welcome from
// embedded templates.
type Renderer struct {
	templates map[string]templatePair
	brand     string
	loc       *time.Location
}

// RendererConfig holds the parameters needed to construct a Renderer.
type RendererConfig struct {
	Brand    string
	Location *time.Location // defaults to UTC
}

const (
	tmplAdminSimple   = "admin_simple"
	tmplAdminExtended = "admin_extended"
	tmplWelcome       = "welcome"
)

// NewRenderer parses the embedded templates and returns a Renderer.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]templatePair),
		brand:     cfg.Brand,
		loc:       cfg.Location,
	}
	if r.loc == nil {
		r.loc = time.UTC
	}

	for _, name := range []string{tmplAdminSimple, tmplAdminExtended, tmplWelcome} {
		htmlTmpl, err := template.ParseFS(templateFS, fmt.Sprintf("templates/%s.html", name))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to parse %s.html: %w", name, err)
		}
		textTmpl, err := texttemplate.ParseFS(templateFS, fmt.Sprintf("templates/%s.txt", name))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to parse %s.txt: %w", name, err)
		}
		r.templates[name] = templatePair{html: htmlTmpl, text: textTmpl}
	}

	return r, nil
}

// AdminNotification renders the message sent to the admin inbox. The
// extended variant carries every field; the simple one only contact and role.
func (r *Renderer) AdminNotification(app types.Application) (*RenderedEmail, error) {
	name, subject := tmplAdminExtended, SubjectAdminExtended
	if app.Variant == types.FormSimple {
		name, subject = tmplAdminSimple, SubjectAdminSimple
	}

	data := r.baseData(app, subject)
	data.Experience = app.ExperienceOr(ExperienceFallback)
	data.Commitment = CommitmentNo
	if app.Commitment {
		data.Commitment = CommitmentYes
	}

	return r.render(name, data)
}

// Welcome renders the acknowledgment sent to the applicant.
func (r *Renderer) Welcome(app types.Application) (*RenderedEmail, error) {
	return r.render(tmplWelcome, r.baseData(app, subjectWelcomePrefix+r.brand))
}

// FormatReceivedAt renders t in the renderer's timezone.
func (r *Renderer) FormatReceivedAt(t time.Time) string {
	return t.In(r.loc).Format(types.LocaleTimestampLayout)
}

func (r *Renderer) baseData(app types.Application, subject string) templateData {
	receivedAt := app.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	lead, accent := splitBrand(r.brand)

	return templateData{
		App:        app,
		Subject:    subject,
		Brand:      r.brand,
		LogoLead:   lead,
		LogoAccent: accent,
		ReceivedAt: r.FormatReceivedAt(receivedAt),
		Year:       receivedAt.In(r.loc).Year(),
	}
}

func (r *Renderer) render(name string, data templateData) (*RenderedEmail, error) {
	pair, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("renderer: no template %q", name)
	}

	var htmlBuf bytes.Buffer
	if err := pair.html.Execute(&htmlBuf, data); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalTemplate,
			fmt.Sprintf("failed to render HTML for %q", name), err)
	}

	var textBuf bytes.Buffer
	if err := pair.text.Execute(&textBuf, data); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalTemplate,
			fmt.Sprintf("failed to render text for %q", name), err)
	}

	return &RenderedEmail{
		Subject:  data.Subject,
		BodyHTML: htmlBuf.String(),
		BodyText: textBuf.String(),
	}, nil
}

// splitBrand turns "Elite Mentorship" into the two-tone logo "ELITE" + "MENTORSHIP".
func splitBrand(brand string) (string, string) {
	lead, accent, _ := strings.Cut(strings.ToUpper(strings.TrimSpace(brand)), " ")
	return lead, strings.ReplaceAll(accent, " ", "")
}
