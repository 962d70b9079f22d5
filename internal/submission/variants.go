package submission

import (
	"fmt"
	"net/url"
	"strings"

	"mentorship/internal/types"
)

// applicationRequest is the wire shape of one form variant.
type applicationRequest interface {
	fromForm(form url.Values)
	toApplication() types.Application
}

// Variant binds a form schema to the path it is served on.
type Variant struct {
	Name       types.FormVariant
	Path       string
	newRequest func() applicationRequest
}

var variants = map[types.FormVariant]Variant{
	types.FormSimple: {
		Name:       types.FormSimple,
		Path:       "/submit",
		newRequest: func() applicationRequest { return &simpleRequest{} },
	},
	types.FormExtended: {
		Name:       types.FormExtended,
		Path:       "/api/submit-application",
		newRequest: func() applicationRequest { return &extendedRequest{} },
	},
}

// LookupVariants resolves variant names from configuration.
func LookupVariants(names []string) ([]Variant, error) {
	out := make([]Variant, 0, len(names))
	for _, name := range names {
		v, ok := variants[types.FormVariant(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown form variant %q", name)
		}
		out = append(out, v)
	}
	return out, nil
}

// simpleRequest is the short signup form.
type simpleRequest struct {
	Name     string `json:"name" validate:"notblank,max=200"`
	Email    string `json:"email" validate:"required,email,max=200"`
	WhatsApp string `json:"whatsapp" validate:"notblank,max=200"`
	Role     string `json:"role" validate:"notblank,max=200"`
}

func (s *simpleRequest) fromForm(form url.Values) {
	s.Name = form.Get("name")
	s.Email = form.Get("email")
	s.WhatsApp = form.Get("whatsapp")
	s.Role = form.Get("role")
}

func (s *simpleRequest) toApplication() types.Application {
	return types.Application{
		Variant: types.FormSimple,
		Name:    strings.TrimSpace(s.Name),
		Email:   strings.TrimSpace(s.Email),
		Phone:   strings.TrimSpace(s.WhatsApp),
		Role:    strings.TrimSpace(s.Role),
	}
}

// extendedRequest is the full mentorship application.
type extendedRequest struct {
	Name         string         `json:"name" validate:"notblank,max=200"`
	Email        string         `json:"email" validate:"required,email,max=200"`
	Phone        string         `json:"phone" validate:"notblank,max=200"`
	College      string         `json:"college" validate:"notblank,max=200"`
	Year         string         `json:"year" validate:"notblank,max=200"`
	Why          string         `json:"why" validate:"notblank,max=5000"`
	Expectations string         `json:"expectations" validate:"notblank,max=5000"`
	Experience   string         `json:"experience" validate:"max=5000"`
	Commitment   types.FlexBool `json:"commitment"`
}

func (e *extendedRequest) fromForm(form url.Values) {
	e.Name = form.Get("name")
	e.Email = form.Get("email")
	e.Phone = form.Get("phone")
	e.College = form.Get("college")
	e.Year = form.Get("year")
	e.Why = form.Get("why")
	e.Expectations = form.Get("expectations")
	e.Experience = form.Get("experience")
	e.Commitment = types.ParseFlexBool(form.Get("commitment"))
}

func (e *extendedRequest) toApplication() types.Application {
	return types.Application{
		Variant:      types.FormExtended,
		Name:         strings.TrimSpace(e.Name),
		Email:        strings.TrimSpace(e.Email),
		Phone:        strings.TrimSpace(e.Phone),
		College:      strings.TrimSpace(e.College),
		Year:         strings.TrimSpace(e.Year),
		Why:          e.Why,
		Expectations: e.Expectations,
		Experience:   e.Experience,
		Commitment:   bool(e.Commitment),
	}
}
