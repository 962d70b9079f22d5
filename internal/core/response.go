package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"mentorship/internal/types"
)

// maxRequestBodySize caps JSON and form bodies.
const maxRequestBodySize = 1 << 20 // 1 MB

// Client-facing messages. Error detail is only ever logged server-side.
const (
	SuccessMessage          = "Application submitted successfully! Check your email."
	FailureMessage          = "Failed to submit application."
	MethodNotAllowedMessage = "Method not allowed"
)

// Envelope is the response body for every form endpoint.
type Envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// JSON writes data with the given status. Marshal failures degrade to the
// failure envelope with status 500.
func JSON(w http.ResponseWriter, _ *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(Envelope{Success: false, Message: FailureMessage})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as an Envelope. AppErrors contribute their status,
// message and field errors; anything else becomes a generic 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		JSON(w, r, http.StatusInternalServerError, Envelope{Success: false, Message: FailureMessage})
		return
	}

	status := appErr.HTTPStatus()
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		message = FailureMessage
	}

	env := Envelope{Success: false, Message: message}
	if fields, ok := appErr.Details["errors"].([]FieldError); ok {
		env.Errors = fields
	}
	JSON(w, r, status, env)
}

// DecodeJSON reads a single JSON value from the body into dst. Unknown
// fields are ignored so older and newer form builds can post to the same
// endpoint.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"request body must contain a single JSON object", nil)
	}
	return nil
}

// ParseForm parses an application/x-www-form-urlencoded body under the
// same size limit as DecodeJSON.
func ParseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must not exceed 1MB", err)
		}
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "malformed form body", err)
	}
	return nil
}

func mapDecodeError(err error) *types.AppError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must not exceed 1MB", err)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "malformed JSON in request body", err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidJSON,
			"invalid value for field "+typeErr.Field, err,
			map[string]any{"errors": []FieldError{{Field: typeErr.Field, Message: "has an invalid type"}}})
	}

	if errors.Is(err, io.EOF) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must not be empty", err)
	}

	return types.NewAppError(types.ErrCodeValidationInvalidJSON, "invalid JSON in request body", err)
}
