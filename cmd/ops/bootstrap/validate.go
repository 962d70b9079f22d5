package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ValidationResult is the outcome of one input check.
type ValidationResult struct {
	Valid   bool
	Message string
}

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	validateTimeout = 15 * time.Second
	sendGridScopes  = "https://api.sendgrid.com/v3/scopes"
)

// Validator checks operator input before it is written to SSM.
type Validator struct {
	httpClient  HTTPClient
	sendGridURL string
	fields      *validator.Validate
}

// NewValidator creates a Validator that probes SendGrid over the network.
func NewValidator() *Validator {
	return NewValidatorWithDeps(&http.Client{Timeout: 10 * time.Second})
}

// NewValidatorWithDeps creates a Validator using httpClient for active
// probes. A nil client disables them.
func NewValidatorWithDeps(httpClient HTTPClient) *Validator {
	return &Validator{
		httpClient:  httpClient,
		sendGridURL: sendGridScopes,
		fields:      validator.New(),
	}
}

func invalid(format string, args ...any) ValidationResult {
	return ValidationResult{Valid: false, Message: fmt.Sprintf(format, args...)}
}

func valid(format string, args ...any) ValidationResult {
	return ValidationResult{Valid: true, Message: fmt.Sprintf(format, args...)}
}

// ValidateEmail accepts a single RFC 5322 address.
func (v *Validator) ValidateEmail(_ context.Context, input string) ValidationResult {
	input = strings.TrimSpace(input)
	if err := v.fields.Var(input, "required,email"); err != nil {
		return invalid("%q is not a valid email address", input)
	}
	return valid("email address accepted (%s)", input)
}

// ValidateHostname accepts a DNS name or an IP address.
func (v *Validator) ValidateHostname(_ context.Context, input string) ValidationResult {
	input = strings.TrimSpace(input)
	if err := v.fields.Var(input, "required,hostname_rfc1123|ip"); err != nil {
		return invalid("%q is not a valid hostname", input)
	}
	return valid("hostname accepted (%s)", input)
}

// ValidateSendGridKey checks the key prefix and then lists the key's scopes,
// requiring mail.send.
func (v *Validator) ValidateSendGridKey(ctx context.Context, key string) ValidationResult {
	key = strings.TrimSpace(key)
	if key == "" {
		return invalid("SendGrid API key must not be empty")
	}
	if !strings.HasPrefix(key, "SG.") {
		return invalid("SendGrid API key should start with 'SG.'")
	}
	if v.httpClient == nil {
		return valid("SendGrid API key format accepted (not probed)")
	}

	probeCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, v.sendGridURL, nil)
	if err != nil {
		return invalid("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("User-Agent", "Mentorship-Bootstrap/1.0")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return invalid("SendGrid API probe failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return invalid("SendGrid API returned HTTP %d: key is invalid or revoked", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return invalid("SendGrid API returned HTTP %d: %s", resp.StatusCode, truncateBody(body, 200))
	}

	var scopes struct {
		Scopes []string `json:"scopes"`
	}
	if err := json.Unmarshal(body, &scopes); err != nil {
		return invalid("SendGrid API returned an unexpected body: %s", truncateBody(body, 200))
	}
	for _, s := range scopes.Scopes {
		if s == "mail.send" {
			return valid("SendGrid API key verified (mail.send granted)")
		}
	}
	return invalid("SendGrid API key lacks the mail.send scope")
}

// ValidateSheetsCredentials accepts a service-account key as single-line
// JSON (the output of cmd/tools/sheets-credentials).
func (v *Validator) ValidateSheetsCredentials(_ context.Context, input string) ValidationResult {
	var key struct {
		Type        string `json:"type"`
		ClientEmail string `json:"client_email" validate:"required,email"`
		PrivateKey  string `json:"private_key" validate:"required"`
		TokenURI    string `json:"token_uri"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(input)), &key); err != nil {
		return invalid("credentials are not valid JSON: %v", err)
	}
	if key.Type != "service_account" {
		return invalid("credentials type is %q, want service_account", key.Type)
	}
	if err := v.fields.Struct(key); err != nil {
		return invalid("credentials are missing client_email or private_key")
	}
	if !strings.Contains(key.PrivateKey, "PRIVATE KEY") {
		return invalid("private_key does not look like a PEM key")
	}
	return valid("service account accepted; share the sheet with %s", key.ClientEmail)
}

// ValidateRegex checks input against pattern.
func (v *Validator) ValidateRegex(_ context.Context, input, pattern, fieldName string) ValidationResult {
	input = strings.TrimSpace(input)
	if input == "" {
		return invalid("%s must not be empty", fieldName)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return invalid("invalid regex pattern %q: %v", pattern, err)
	}
	if !re.MatchString(input) {
		return invalid("%s does not match expected format (pattern: %s)", fieldName, pattern)
	}
	return valid("%s format validated", fieldName)
}

func truncateBody(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
