package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ParameterType selects the SSM storage type.
type ParameterType int

const (
	// ParamSecureString is encrypted at rest with the account's default KMS key.
	ParamSecureString ParameterType = iota
	// ParamString is plaintext.
	ParamString
)

// BootstrapStep is one parameter the operator is asked for.
type BootstrapStep struct {
	HumanLabel string
	// SSMKey is the path below the environment prefix, e.g. "mail/password".
	SSMKey string
	// EnvVar is the configuration variable the parameter feeds.
	EnvVar    string
	ParamType ParameterType
	Prompt    string
	// ValidateFn may be nil, in which case any non-empty input is accepted.
	ValidateFn func(ctx context.Context, input string) ValidationResult
	// IsSecret masks the input on a terminal.
	IsSecret bool
	// Optional steps are skipped on empty input.
	Optional bool
	Phase    string
}

// Step outcomes reported in the summary.
const (
	actionWritten     = "written"
	actionOverwritten = "overwritten"
	actionSkipped     = "skipped"
	actionKept        = "kept"
)

// maxRetries caps validation failures per step.
const maxRetries = 5

var errSkipped = errors.New("parameter skipped by operator")

// BuildInventory lists the parameters in prompt order.
func BuildInventory(v *Validator) []BootstrapStep {
	return []BootstrapStep{
		{
			HumanLabel: "Sender Email",
			SSMKey:     "mail/sender_email",
			EnvVar:     "SENDER_EMAIL",
			ParamType:  ParamString,
			Prompt:     "Address applicants receive mail from (e.g. team@yourdomain.com):",
			ValidateFn: v.ValidateEmail,
			Phase:      "Mail",
		},
		{
			HumanLabel: "Receiver Email",
			SSMKey:     "mail/receiver_email",
			EnvVar:     "RECEIVER_EMAIL",
			ParamType:  ParamString,
			Prompt:     "Inbox that receives the admin notification for every application:",
			ValidateFn: v.ValidateEmail,
			Phase:      "Mail",
		},
		{
			HumanLabel: "SMTP Host (optional)",
			SSMKey:     "mail/smtp_host",
			EnvVar:     "SMTP_HOST",
			ParamType:  ParamString,
			Prompt:     "SMTP relay host, e.g. smtp.gmail.com (press Enter to skip when using SES or SendGrid):",
			ValidateFn: v.ValidateHostname,
			Optional:   true,
			Phase:      "Mail",
		},
		{
			HumanLabel: "Mail Password (optional)",
			SSMKey:     "mail/password",
			EnvVar:     "MAIL_PASSWORD",
			ParamType:  ParamSecureString,
			Prompt: `1. For Gmail, enable 2-Step Verification on the sender account.
   2. Create an App Password under Security > App passwords.
   3. Paste it here (or press Enter to skip):`,
			ValidateFn: func(ctx context.Context, input string) ValidationResult {
				return v.ValidateRegex(ctx, input, `^.{8,}$`, "Mail Password")
			},
			IsSecret: true,
			Optional: true,
			Phase:    "Mail",
		},
		{
			HumanLabel: "SendGrid API Key (optional)",
			SSMKey:     "mail/sendgrid_api_key",
			EnvVar:     "SENDGRID_API_KEY",
			ParamType:  ParamSecureString,
			Prompt: `1. Go to SendGrid > Settings > API Keys.
   2. Create a key with the Mail Send permission.
   3. Paste it here (or press Enter to skip):`,
			ValidateFn: v.ValidateSendGridKey,
			IsSecret:   true,
			Optional:   true,
			Phase:      "Mail",
		},
		{
			HumanLabel: "Google Sheets Credentials (optional)",
			SSMKey:     "sheets/credentials",
			EnvVar:     "GOOGLE_SHEETS_CREDENTIALS",
			ParamType:  ParamSecureString,
			Prompt: `1. Create a service account with the Google Sheets API enabled and download its JSON key.
   2. Run: go run ./cmd/tools/sheets-credentials path/to/key.json
   3. Paste the single-line JSON value here (or press Enter to skip):`,
			ValidateFn: v.ValidateSheetsCredentials,
			IsSecret:   true,
			Optional:   true,
			Phase:      "Google Sheets",
		},
		{
			HumanLabel: "Google Sheet ID (optional)",
			SSMKey:     "sheets/spreadsheet_id",
			EnvVar:     "GOOGLE_SHEET_ID",
			ParamType:  ParamString,
			Prompt:     "Spreadsheet id from the sheet URL (/spreadsheets/d/<id>/edit), or press Enter to skip:",
			ValidateFn: func(ctx context.Context, input string) ValidationResult {
				return v.ValidateRegex(ctx, input, `^[A-Za-z0-9_-]{20,}$`, "Google Sheet ID")
			},
			Optional: true,
			Phase:    "Google Sheets",
		},
	}
}

// BootstrapRunner drives the prompt loop.
type BootstrapRunner struct {
	SSM       *SSMManager
	Validator *Validator
	Stdin     io.Reader
	Stderr    io.Writer

	// SkipOptional skips every optional step without prompting.
	SkipOptional bool

	// One scanner for the whole session; separate scanners would each
	// buffer ahead and lose input.
	scanner *bufio.Scanner

	inventoryOverride []BootstrapStep
}

// NewBootstrapRunner creates a runner bound to the terminal.
func NewBootstrapRunner(bctx *BootstrapContext) *BootstrapRunner {
	return &BootstrapRunner{
		SSM:       NewSSMManager(bctx),
		Validator: NewValidator(),
		Stdin:     os.Stdin,
		Stderr:    os.Stderr,
	}
}

func (r *BootstrapRunner) inventory() []BootstrapStep {
	if r.inventoryOverride != nil {
		return r.inventoryOverride
	}
	return BuildInventory(r.Validator)
}

type stepResult struct {
	Label  string
	EnvVar string
	Action string
	Path   string
}

// Run processes every step in order and prints a summary.
func (r *BootstrapRunner) Run(ctx context.Context) error {
	inventory := r.inventory()

	var phase string
	results := make([]stepResult, 0, len(inventory))
	for i, step := range inventory {
		if step.Phase != phase {
			phase = step.Phase
			r.printPhaseHeader(phase)
		}
		fmt.Fprintf(r.Stderr, "\n[%d/%d] %s\n", i+1, len(inventory), step.HumanLabel)

		res, err := r.processStep(ctx, step)
		if err != nil {
			return fmt.Errorf("step %q failed: %w", step.HumanLabel, err)
		}
		results = append(results, res)
	}

	r.printSummary(results)
	return nil
}

func (r *BootstrapRunner) processStep(ctx context.Context, step BootstrapStep) (stepResult, error) {
	path := r.SSM.SSMPath(step.SSMKey)
	res := stepResult{Label: step.HumanLabel, EnvVar: step.EnvVar, Path: path}

	if step.Optional && r.SkipOptional {
		fmt.Fprintf(r.Stderr, "  Skipped (--skip-optional)\n")
		res.Action = actionSkipped
		return res, nil
	}

	exists, err := r.SSM.ParameterExists(ctx, path)
	if err != nil {
		return res, fmt.Errorf("checking existence of %s: %w", path, err)
	}
	if exists {
		fmt.Fprintf(r.Stderr, "  Parameter already exists: %s\n", path)
		overwrite, err := r.promptSkipOrOverwrite()
		if err != nil {
			return res, fmt.Errorf("reading skip/overwrite choice: %w", err)
		}
		if !overwrite {
			fmt.Fprintf(r.Stderr, "  Kept existing value.\n")
			res.Action = actionKept
			return res, nil
		}
	}

	value, err := r.promptAndValidate(ctx, step)
	if errors.Is(err, errSkipped) {
		fmt.Fprintf(r.Stderr, "  Skipped.\n")
		res.Action = actionSkipped
		return res, nil
	}
	if err != nil {
		return res, err
	}

	if step.ParamType == ParamSecureString {
		err = r.SSM.PutSecret(ctx, path, value, exists)
	} else {
		err = r.SSM.PutString(ctx, path, value)
	}
	if err != nil {
		return res, fmt.Errorf("writing SSM parameter %s: %w", path, err)
	}

	res.Action = actionWritten
	if exists {
		res.Action = actionOverwritten
	}
	fmt.Fprintf(r.Stderr, "  Stored: %s\n", path)
	return res, nil
}

// promptAndValidate reads input until it validates, the operator skips, or
// maxRetries validation failures accumulate.
func (r *BootstrapRunner) promptAndValidate(ctx context.Context, step BootstrapStep) (string, error) {
	fmt.Fprintf(r.Stderr, "\n  %s\n\n", step.Prompt)

	for attempt := 1; attempt <= maxRetries; {
		read := r.readInput
		if step.IsSecret {
			read = r.readSecretInput
		}
		input, err := read("  > ")
		if err != nil {
			return "", fmt.Errorf("reading input for %s: %w", step.HumanLabel, err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			if step.Optional {
				return "", errSkipped
			}
			fmt.Fprintf(r.Stderr, "  A value is required.\n")
			continue
		}

		// Never echo secrets back.
		if step.IsSecret {
			fmt.Fprintf(r.Stderr, "  Received %d chars.\n", len(input))
		}

		if step.ValidateFn != nil {
			vr := step.ValidateFn(ctx, input)
			if !vr.Valid {
				fmt.Fprintf(r.Stderr, "  Validation failed: %s\n", vr.Message)
				if attempt < maxRetries {
					fmt.Fprintf(r.Stderr, "  Try again (%d/%d).\n", attempt, maxRetries)
				}
				attempt++
				continue
			}
			fmt.Fprintf(r.Stderr, "  Validated: %s\n", vr.Message)
		}
		return input, nil
	}

	return "", fmt.Errorf("maximum retries (%d) exceeded for %s", maxRetries, step.HumanLabel)
}

func (r *BootstrapRunner) scanLine() (string, error) {
	if r.scanner == nil {
		r.scanner = bufio.NewScanner(r.Stdin)
		// Service-account keys run to a few KB on one line.
		r.scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *BootstrapRunner) readInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)
	return r.scanLine()
}

// readSecretInput disables echo when stdin is a terminal and falls back to
// plain line reads otherwise (piped input, tests).
func (r *BootstrapRunner) readSecretInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)

	if f, ok := r.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(r.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret input: %w", err)
		}
		return string(secret), nil
	}
	return r.scanLine()
}

// promptSkipOrOverwrite reports true when the operator chooses to overwrite.
func (r *BootstrapRunner) promptSkipOrOverwrite() (bool, error) {
	for {
		fmt.Fprint(r.Stderr, "  [K]eep or [O]verwrite? ")
		line, err := r.scanLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "k", "keep", "s", "skip":
			return false, nil
		case "o", "overwrite":
			return true, nil
		default:
			fmt.Fprintf(r.Stderr, "  Please enter 'K' to keep or 'O' to overwrite.\n")
		}
	}
}

func (r *BootstrapRunner) printPhaseHeader(phase string) {
	fmt.Fprintf(r.Stderr, "\n============================================================\n")
	fmt.Fprintf(r.Stderr, "  Phase: %s\n", phase)
	fmt.Fprintf(r.Stderr, "============================================================\n")
}

// printSummary lists every step and the _SSM_PARAM pointers to configure on
// the deployed function.
func (r *BootstrapRunner) printSummary(results []stepResult) {
	counts := make(map[string]int)
	fmt.Fprintf(r.Stderr, "\n============================================================\n")
	fmt.Fprintf(r.Stderr, "  Bootstrap Summary\n")
	fmt.Fprintf(r.Stderr, "============================================================\n")
	for _, res := range results {
		counts[res.Action]++
		fmt.Fprintf(r.Stderr, "  %-14s %s\n", "["+strings.ToUpper(res.Action)+"]", res.Label)
	}
	fmt.Fprintf(r.Stderr, "------------------------------------------------------------\n")
	fmt.Fprintf(r.Stderr, "  Written: %d | Overwritten: %d | Kept: %d | Skipped: %d\n",
		counts[actionWritten], counts[actionOverwritten], counts[actionKept], counts[actionSkipped])

	fmt.Fprintf(r.Stderr, "\n  Function environment:\n")
	for _, res := range results {
		if res.Action == actionSkipped {
			continue
		}
		fmt.Fprintf(r.Stderr, "    %s_SSM_PARAM=%s\n", res.EnvVar, res.Path)
	}
	fmt.Fprintf(r.Stderr, "\n")
}
