package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ExportEnvConfig controls ExportEnvFile.
type ExportEnvConfig struct {
	OutputPath  string
	Environment string
	SSM         *SSMManager
	Stderr      io.Writer
	// IncludeLocalDefaults appends the non-secret settings a local run needs.
	IncludeLocalDefaults bool
	// Inventory defaults to BuildInventory without network probes.
	Inventory []BootstrapStep
}

// localDevDefaults are written after the SSM values.
var localDevDefaults = []struct{ key, value string }{
	{"APP_ENV", "local"},
	{"LOG_LEVEL", "debug"},
	{"PORT", "3000"},
	{"METRICS_BACKEND", "prometheus"},
}

// ExportEnvFile reads every inventory parameter back from SSM and writes a
// .env file with mode 0600. Missing parameters are skipped; it fails when
// none could be read.
func ExportEnvFile(ctx context.Context, cfg ExportEnvConfig) error {
	inventory := cfg.Inventory
	if inventory == nil {
		inventory = BuildInventory(NewValidatorWithDeps(nil))
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	exported := make(map[string]string, len(inventory))
	var lines []string
	var failures []error

	for _, step := range inventory {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("export cancelled: %w", err)
		}

		path := cfg.SSM.SSMPath(step.SSMKey)
		value, err := cfg.SSM.GetParameterValue(ctx, path, step.ParamType == ParamSecureString)
		if err != nil {
			var notFound *ssmtypes.ParameterNotFound
			if errors.As(err, &notFound) {
				fmt.Fprintf(stderr, "  not set: %s (%s)\n", step.EnvVar, path)
				continue
			}
			failures = append(failures, err)
			fmt.Fprintf(stderr, "  failed:  %s (%v)\n", step.EnvVar, err)
			continue
		}
		exported[step.EnvVar] = value
		lines = append(lines, formatEnvLine(step.EnvVar, value))
		fmt.Fprintf(stderr, "  exported: %s\n", step.EnvVar)
	}

	if len(lines) == 0 {
		return fmt.Errorf("no parameters found under %s: %w", ssmPrefix(cfg.Environment), errors.Join(failures...))
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Auto-generated by bootstrap --export-env\n")
	fmt.Fprintf(&buf, "# Environment: %s\n", cfg.Environment)
	fmt.Fprintf(&buf, "# Generated: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&buf, "# SECURITY WARNING: this file contains plaintext secrets. Do not commit it.\n\n")
	buf.WriteString(strings.Join(lines, "\n"))
	buf.WriteString("\n")

	if cfg.IncludeLocalDefaults {
		buf.WriteString("\n# Local development defaults\n")
		for _, d := range localDevDefaults {
			buf.WriteString(formatEnvLine(d.key, d.value) + "\n")
		}
		if provider := inferMailProvider(exported); provider != "" {
			buf.WriteString(formatEnvLine("MAIL_PROVIDER", provider) + "\n")
		}
	}

	if err := os.WriteFile(cfg.OutputPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.OutputPath, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(cfg.OutputPath, 0o600); err != nil {
		return fmt.Errorf("restricting permissions on %s: %w", cfg.OutputPath, err)
	}
	return nil
}

// inferMailProvider picks SMTP when a relay was stored, else SendGrid when a
// key was stored.
func inferMailProvider(exported map[string]string) string {
	switch {
	case exported["SMTP_HOST"] != "":
		return "smtp"
	case exported["SENDGRID_API_KEY"] != "":
		return "sendgrid"
	default:
		return ""
	}
}

// formatEnvLine renders KEY=value, double-quoting and escaping the value when
// it holds characters a dotenv parser would otherwise interpret.
func formatEnvLine(key, value string) string {
	if value != "" && !strings.ContainsAny(value, " \t\n\r\"'`\\#$={}[],") {
		return key + "=" + value
	}
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		`$`, `\$`,
	)
	return key + `="` + r.Replace(value) + `"`
}
