package config

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSecretProvider is a configurable SecretProvider for SSM resolution tests.
type testSecretProvider struct {
	values     map[string]string
	err        error
	calledWith []string
}

func (p *testSecretProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	p.calledWith = append(p.calledWith, keys...)
	if p.err != nil {
		return nil, p.err
	}
	result := make(map[string]string)
	for _, k := range keys {
		if v, ok := p.values[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

var managedEnv = []string{
	"APP_ENV", "SERVICE_NAME", "LOG_LEVEL", "IS_TEST_MODE", "PORT", "STATIC_DIR",
	"MAIL_PROVIDER", "SENDER_EMAIL", "SENDER_NAME", "RECEIVER_EMAIL",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "MAIL_PASSWORD", "SMTP_SECURE",
	"SMTP_DIAL_TIMEOUT", "SMTP_MAX_CONNS", "SENDGRID_API_KEY", "SES_CONFIGURATION_SET",
	"GOOGLE_SHEETS_CREDENTIALS", "GOOGLE_SHEET_ID", "GOOGLE_SHEET_RANGE",
	"GOOGLE_SHEET_RANGE_SIMPLE", "SHEETS_TIMEZONE", "BRAND_NAME", "FORM_VARIANTS",
	"SHEETS_APPEND_TIMEOUT", "SUBMIT_TIMEOUT",
	"AWS_REGION", "AWS_ENDPOINT_URL", "METRICS_BACKEND", "METRIC_NAMESPACE",
	"MAIL_PASSWORD_SSM_PARAM", "GOOGLE_SHEETS_CREDENTIALS_SSM_PARAM",
}

// setBaseEnv clears every variable the loader reads and sets the minimum
// required for a valid SMTP configuration.
func setBaseEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedEnv {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("APP_ENV", "local")
	t.Setenv("SENDER_EMAIL", "mentors@example.com")
	t.Setenv("RECEIVER_EMAIL", "admin@example.com")
	t.Setenv("SMTP_HOST", "smtp.example.com")
}

func testDeps() loaderDeps {
	deps := defaultDeps()
	deps.dotenv = func() error { return nil }
	return deps
}

func TestLoadConfigDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := loadConfigWithDeps(nil, testDeps())
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, MailProviderSMTP, cfg.Mail.Provider)
	assert.Equal(t, 587, cfg.Mail.SMTPPort)
	assert.Equal(t, 10*time.Second, cfg.Mail.SMTPDialTimeout)
	assert.Equal(t, 2, cfg.Mail.SMTPMaxConns)
	assert.Equal(t, "mentors@example.com", cfg.Mail.Username())
	assert.Equal(t, "Sheet1!A:J", cfg.Sheets.Range)
	assert.Empty(t, cfg.Sheets.SimpleRange)
	assert.Equal(t, "Asia/Kolkata", cfg.Sheets.Timezone)
	assert.Equal(t, 8*time.Second, cfg.Sheets.AppendTimeout)
	assert.Equal(t, 25*time.Second, cfg.Forms.SubmitTimeout)
	assert.False(t, cfg.Sheets.Enabled())
	assert.Equal(t, "Elite Mentorship", cfg.Forms.Brand)
	assert.Equal(t, []string{"simple", "extended"}, cfg.Forms.Variants)
	assert.Equal(t, MetricsPrometheus, cfg.Observability.MetricsBackend)
	assert.Equal(t, "MentorshipIntake", cfg.Observability.MetricNamespace)
	assert.Equal(t, "dev", cfg.Build.Version)
}

func TestLoadConfigOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SMTP_USERNAME", "relay-user")
	t.Setenv("MAIL_PASSWORD", "app-password")
	t.Setenv("GOOGLE_SHEETS_CREDENTIALS", `{"type":"service_account"}`)
	t.Setenv("GOOGLE_SHEET_ID", "sheet-123")
	t.Setenv("FORM_VARIANTS", "extended")

	cfg, err := loadConfigWithDeps(nil, testDeps())
	require.NoError(t, err)

	assert.Equal(t, "relay-user", cfg.Mail.Username())
	assert.Equal(t, "app-password", cfg.Mail.Password.Unmask())
	assert.Equal(t, "***REDACTED***", cfg.Mail.Password.String())
	assert.True(t, cfg.Sheets.Enabled())
	assert.Equal(t, []string{"extended"}, cfg.Forms.Variants)
}

func TestLoadConfigMissingRequired(t *testing.T) {
	setBaseEnv(t)
	os.Unsetenv("RECEIVER_EMAIL")

	_, err := loadConfigWithDeps(nil, testDeps())
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrMissingEnv, cfgErr.Type)
	assert.Contains(t, cfgErr.Message, "AdminAddress")
}

func TestLoadConfigSMTPHostRequiredOnlyForSMTP(t *testing.T) {
	setBaseEnv(t)
	os.Unsetenv("SMTP_HOST")

	_, err := loadConfigWithDeps(nil, testDeps())
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrMissingEnv, cfgErr.Type)

	t.Setenv("MAIL_PROVIDER", "ses")
	cfg, err := loadConfigWithDeps(nil, testDeps())
	require.NoError(t, err)
	assert.Equal(t, MailProviderSES, cfg.Mail.Provider)
}

func TestLoadConfigSendGridRequiresKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("MAIL_PROVIDER", "sendgrid")

	_, err := loadConfigWithDeps(nil, testDeps())
	require.Error(t, err)

	t.Setenv("SENDGRID_API_KEY", "SG.test")
	_, err = loadConfigWithDeps(nil, testDeps())
	require.NoError(t, err)
}

func TestLoadConfigValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown environment", "APP_ENV", "qa"},
		{"unknown mail provider", "MAIL_PROVIDER", "mailgun"},
		{"bad sender address", "SENDER_EMAIL", "not-an-address"},
		{"unknown timezone", "SHEETS_TIMEZONE", "Mars/Olympus"},
		{"unknown variant", "FORM_VARIANTS", "simple,premium"},
		{"unknown metrics backend", "METRICS_BACKEND", "statsd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := loadConfigWithDeps(&testSecretProvider{}, testDeps())
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
			assert.Equal(t, ErrValidation, cfgErr.Type)
		})
	}
}

func TestLoadConfigParsingFailure(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SMTP_PORT", "not-a-number")

	_, err := loadConfigWithDeps(nil, testDeps())
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrParsing, cfgErr.Type)
}

func TestLoadConfigResolvesSSMOutsideLocal(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("MAIL_PASSWORD_SSM_PARAM", "/prod/mentorship/mail_password")
	t.Setenv("GOOGLE_SHEETS_CREDENTIALS_SSM_PARAM", "/prod/mentorship/sheets_credentials")
	t.Setenv("GOOGLE_SHEET_ID", "sheet-123")

	provider := &testSecretProvider{values: map[string]string{
		"/prod/mentorship/mail_password":      "from-ssm",
		"/prod/mentorship/sheets_credentials": `{"type":"service_account"}`,
	}}

	cfg, err := loadConfigWithDeps(provider, testDeps())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"/prod/mentorship/mail_password", "/prod/mentorship/sheets_credentials"}, provider.calledWith)
	assert.Equal(t, "from-ssm", cfg.Mail.Password.Unmask())
	assert.True(t, cfg.Sheets.Enabled())
}

func TestLoadConfigEnvironmentWinsOverSSM(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "staging")
	t.Setenv("MAIL_PASSWORD", "from-env")
	t.Setenv("MAIL_PASSWORD_SSM_PARAM", "/staging/mentorship/mail_password")

	provider := &testSecretProvider{}
	cfg, err := loadConfigWithDeps(provider, testDeps())
	require.NoError(t, err)

	assert.Empty(t, provider.calledWith)
	assert.Equal(t, "from-env", cfg.Mail.Password.Unmask())
}

func TestLoadConfigSkipsSSMLocally(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("MAIL_PASSWORD_SSM_PARAM", "/local/ignored")

	provider := &testSecretProvider{}
	cfg, err := loadConfigWithDeps(provider, testDeps())
	require.NoError(t, err)

	assert.Empty(t, provider.calledWith)
	assert.True(t, cfg.Mail.Password.IsZero())
}

func TestLoadConfigSSMFailures(t *testing.T) {
	t.Run("nil provider", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("APP_ENV", "prod")
		t.Setenv("MAIL_PASSWORD_SSM_PARAM", "/prod/mentorship/mail_password")

		_, err := loadConfigWithDeps(nil, testDeps())
		var cfgErr *ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, ErrSSMResolution, cfgErr.Type)
		assert.Contains(t, cfgErr.Message, "MAIL_PASSWORD")
	})

	t.Run("provider error", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("APP_ENV", "prod")
		t.Setenv("MAIL_PASSWORD_SSM_PARAM", "/prod/mentorship/mail_password")

		boom := errors.New("throttled")
		_, err := loadConfigWithDeps(&testSecretProvider{err: boom}, testDeps())
		require.ErrorIs(t, err, boom)
	})

	t.Run("parameter missing", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("APP_ENV", "prod")
		t.Setenv("MAIL_PASSWORD_SSM_PARAM", "/prod/mentorship/mail_password")

		_, err := loadConfigWithDeps(&testSecretProvider{values: map[string]string{}}, testDeps())
		var cfgErr *ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, ErrSSMResolution, cfgErr.Type)
		assert.Contains(t, cfgErr.Message, "MAIL_PASSWORD")
	})
}
