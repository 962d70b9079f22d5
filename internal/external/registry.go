package external

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"mentorship/internal/config"
)

const (
	sendGridTimeout = 10 * time.Second
	sheetsTimeout   = 15 * time.Second
)

// SheetsFactory builds the Sheets client on first use.
type SheetsFactory func(ctx context.Context) (RowAppender, error)

// ClientRegistry holds the vendor clients selected by configuration.
type ClientRegistry struct {
	Email EmailProvider
	// Sheets is nil when recording is not configured.
	Sheets SheetsFactory

	Probes  []HealthChecker
	Closers []io.Closer
}

// NewClientRegistry builds the registry. With IS_TEST_MODE every vendor is
// replaced by a logging stub; otherwise MAIL_PROVIDER picks the mail client.
func NewClientRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ClientRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.IsTestMode {
		logger.Info("initializing external clients in STUB mode", "environment", cfg.Environment)
		stubLogger := logger.With("mode", "stub")
		reg := &ClientRegistry{Email: NewStubEmailProvider(stubLogger)}
		if cfg.Sheets.Enabled() {
			reg.Sheets = func(context.Context) (RowAppender, error) {
				return NewStubRowAppender(stubLogger), nil
			}
		}
		return reg, nil
	}

	logger.Info("initializing external clients",
		"environment", cfg.Environment,
		"mail_provider", cfg.Mail.Provider,
		"sheets_enabled", cfg.Sheets.Enabled(),
	)

	reg := &ClientRegistry{}
	if err := reg.initEmail(ctx, cfg, logger); err != nil {
		return nil, err
	}

	if cfg.Sheets.Enabled() {
		sheetsCfg := cfg.Sheets
		sheetsLogger := logger.With("client", "google-sheets")
		reg.Sheets = func(ctx context.Context) (RowAppender, error) {
			return NewSheetsClient(ctx, &http.Client{Timeout: sheetsTimeout}, SheetsClientConfig{
				CredentialsJSON: []byte(sheetsCfg.Credentials.Unmask()),
				SpreadsheetID:   sheetsCfg.SpreadsheetID,
				Logger:          sheetsLogger,
			})
		}
	}

	return reg, nil
}

func (r *ClientRegistry) initEmail(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	switch cfg.Mail.Provider {
	case config.MailProviderSMTP, "":
		client := NewSMTPClient(SMTPClientConfig{
			Host:        cfg.Mail.SMTPHost,
			Port:        cfg.Mail.SMTPPort,
			Username:    cfg.Mail.Username(),
			Password:    cfg.Mail.Password.Unmask(),
			ImplicitTLS: cfg.Mail.SMTPSecure,
			DialTimeout: cfg.Mail.SMTPDialTimeout,
			MaxConns:    cfg.Mail.SMTPMaxConns,
			Logger:      logger.With("client", "smtp"),
		})
		r.Email = client
		r.Probes = append(r.Probes, client)
		r.Closers = append(r.Closers, client)

	case config.MailProviderSES:
		awsCfg, err := LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return err
		}
		r.Email = NewSESClient(awsCfg, SESClientConfig{
			ConfigSetName: cfg.Mail.SESConfigurationSet,
			EndpointURL:   cfg.AWS.EndpointURL,
			Logger:        logger.With("client", "ses"),
		})

	case config.MailProviderSendGrid:
		client := NewSendGridClient(&http.Client{Timeout: sendGridTimeout}, SendGridClientConfig{
			APIKey: cfg.Mail.SendGridAPIKey.Unmask(),
			Logger: logger.With("client", "sendgrid"),
		})
		r.Email = client
		r.Probes = append(r.Probes, client)

	default:
		return fmt.Errorf("unknown mail provider %q", cfg.Mail.Provider)
	}
	return nil
}

// LoadAWSConfig loads the default AWS credential chain for the configured
// region.
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config (region=%s): %w", cfg.Region, err)
	}
	return awsCfg, nil
}
