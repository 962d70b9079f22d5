// Package config defines the configuration structure for the mentorship
// intake service. Configuration is loaded once at process start (or Lambda
// cold start) and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format aborts startup.
package config

import (
	"time"

	"mentorship/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Mail provider identifiers accepted by MAIL_PROVIDER.
const (
	MailProviderSMTP     = "smtp"
	MailProviderSES      = "ses"
	MailProviderSendGrid = "sendgrid"
)

// Metrics backends accepted by METRICS_BACKEND.
const (
	MetricsPrometheus = "prometheus"
	MetricsCloudWatch = "cloudwatch"
	MetricsNone       = "none"
)

// Config is the top-level configuration struct. Sub-components receive only
// the subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"mentorship-intake"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	Server        ServerConfig
	Mail          MailConfig
	Sheets        SheetsConfig
	Forms         FormsConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"3000"`
	// StaticDir, when set, is served at / with gzip compression.
	StaticDir string `envconfig:"STATIC_DIR"`
}

// MailConfig holds the sender identity and the provider credentials.
type MailConfig struct {
	Provider      string `envconfig:"MAIL_PROVIDER" default:"smtp" validate:"oneof=smtp ses sendgrid"`
	SenderAddress string `envconfig:"SENDER_EMAIL" validate:"required,email"`
	SenderName    string `envconfig:"SENDER_NAME"`
	// AdminAddress receives the admin notification for every submission.
	AdminAddress string `envconfig:"RECEIVER_EMAIL" validate:"required,email"`

	SMTPHost        string        `envconfig:"SMTP_HOST" validate:"required_if=Provider smtp"`
	SMTPPort        int           `envconfig:"SMTP_PORT" default:"587" validate:"min=1,max=65535"`
	SMTPUsername    string        `envconfig:"SMTP_USERNAME"`
	Password        SecretString  `envconfig:"MAIL_PASSWORD"`
	SMTPSecure      bool          `envconfig:"SMTP_SECURE" default:"false"`
	SMTPDialTimeout time.Duration `envconfig:"SMTP_DIAL_TIMEOUT" default:"10s"`
	SMTPMaxConns    int           `envconfig:"SMTP_MAX_CONNS" default:"2" validate:"min=1,max=16"`

	SendGridAPIKey      SecretString `envconfig:"SENDGRID_API_KEY" validate:"required_if=Provider sendgrid"`
	SESConfigurationSet string       `envconfig:"SES_CONFIGURATION_SET"`
}

// Username returns the SMTP login, defaulting to the sender address.
func (m MailConfig) Username() string {
	if m.SMTPUsername != "" {
		return m.SMTPUsername
	}
	return m.SenderAddress
}

// SheetsConfig holds Google Sheets recording settings. Recording is disabled
// when Credentials or SpreadsheetID is empty.
type SheetsConfig struct {
	Credentials   SecretString `envconfig:"GOOGLE_SHEETS_CREDENTIALS"`
	SpreadsheetID string       `envconfig:"GOOGLE_SHEET_ID"`
	Range         string       `envconfig:"GOOGLE_SHEET_RANGE" default:"Sheet1!A:J"`
	// SimpleRange is empty by default, leaving simple-form rows unrecorded.
	SimpleRange string `envconfig:"GOOGLE_SHEET_RANGE_SIMPLE"`
	Timezone    string `envconfig:"SHEETS_TIMEZONE" default:"Asia/Kolkata" validate:"timezone"`
	// AppendTimeout bounds one Record call, client initialization included.
	AppendTimeout time.Duration `envconfig:"SHEETS_APPEND_TIMEOUT" default:"8s"`
}

// Enabled reports whether both credentials and a spreadsheet id are configured.
func (s SheetsConfig) Enabled() bool {
	return !s.Credentials.IsZero() && s.SpreadsheetID != ""
}

// FormsConfig selects the mounted form variants and the brand used in
// applicant-facing copy.
type FormsConfig struct {
	Brand    string   `envconfig:"BRAND_NAME" default:"Elite Mentorship" validate:"required"`
	Variants []string `envconfig:"FORM_VARIANTS" default:"simple,extended" validate:"min=1,dive,oneof=simple extended"`
	// SubmitTimeout bounds the fan-out of one submission. It must stay under
	// the HTTP WriteTimeout and the API Gateway integration limit.
	SubmitTimeout time.Duration `envconfig:"SUBMIT_TIMEOUT" default:"25s"`
}

// AWSConfig holds AWS regional configuration shared by SES, SSM and CloudWatch.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=prometheus cloudwatch none"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"MentorshipIntake"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
