package types

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// FormVariant identifies which intake form produced an Application.
type FormVariant string

const (
	// FormSimple is the short signup form: name, email, whatsapp, role.
	FormSimple FormVariant = "simple"
	// FormExtended is the full mentorship application with motivation,
	// expectations, experience and the commitment checkbox.
	FormExtended FormVariant = "extended"
)

// LocaleTimestampLayout formats times the way the en-IN locale does, e.g.
// "14/3/2026, 3:04:05 pm". Emails and sheet rows share it.
const LocaleTimestampLayout = "2/1/2006, 3:04:05 pm"

// Application is one applicant's submission. It lives only for the duration
// of a request and is never persisted by this service.
type Application struct {
	SubmissionID string
	Variant      FormVariant
	ReceivedAt   time.Time

	Name         string
	Email        string
	Phone        string // phone or WhatsApp contact
	College      string
	Year         string
	Why          string
	Expectations string
	Experience   string
	Commitment   bool
	Role         string
}

// ExperienceOr returns the prior experience text, or fallback when the
// applicant left it blank.
func (a Application) ExperienceOr(fallback string) string {
	if strings.TrimSpace(a.Experience) == "" {
		return fallback
	}
	return a.Experience
}

// CommitmentLabel renders the commitment flag as "Yes" or "No".
func (a Application) CommitmentLabel() string {
	if a.Commitment {
		return "Yes"
	}
	return "No"
}

// FlexBool decodes the truthy encodings browsers and form libraries send for a
// checkbox: JSON booleans, "true"/"on"/"yes"/"1" strings and non-zero numbers.
// Anything else, including null and the empty string, decodes to false.
type FlexBool bool

var flexBoolType = reflect.TypeOf(FlexBool(false))

// UnmarshalJSON implements json.Unmarshaler.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*b = false
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = ParseFlexBool(s)
		return nil
	case bytes.Equal(data, []byte("true")):
		*b = true
		return nil
	case bytes.Equal(data, []byte("false")):
		*b = false
		return nil
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return &json.UnmarshalTypeError{Value: string(data), Type: flexBoolType}
		}
		*b = f != 0
		return nil
	}
}

// ParseFlexBool interprets a form value as a checkbox state.
func ParseFlexBool(s string) FlexBool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "on", "yes", "y", "1", "checked":
		return true
	default:
		return false
	}
}

// SenderIdentity defines the sender for outgoing emails.
type SenderIdentity struct {
	Name    string
	Address string
}

// SendInput is the provider-neutral contract for one outgoing email.
// Content is pre-rendered; providers send it verbatim.
type SendInput struct {
	To          string
	From        SenderIdentity
	Subject     string
	BodyHTML    string
	BodyText    string
	ReferenceID string
}
