// Package main formats a Google service-account key file for the .env file.
//
// Usage:
//
//	go run ./cmd/tools/sheets-credentials ~/Downloads/mentorship-form-service-xxxxx.json
//
// It prints GOOGLE_SHEETS_CREDENTIALS as single-line JSON together with the
// service-account address the spreadsheet must be shared with.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

const serviceAccountType = "service_account"

var rule = strings.Repeat("─", 80)

type serviceAccount struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintf(stderr, "error: missing path to the Google credentials JSON file\n\n")
		fmt.Fprintf(stderr, "Usage:\n  sheets-credentials path/to/credentials.json\n")
		return 1
	}

	path := args[0]
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(stderr, "error: file not found: %s\n", path)
		} else {
			fmt.Fprintf(stderr, "error: reading %s: %v\n", path, err)
		}
		return 1
	}

	line, account, err := formatCredentials(raw)
	if err != nil {
		fmt.Fprintf(stderr, "error: parsing %s: %v\n", path, err)
		return 1
	}

	if account.Type != serviceAccountType {
		fmt.Fprintf(stderr, "warning: %q is not a service account credentials file (type=%q)\n", path, account.Type)
	}

	fmt.Fprintf(stdout, "Copy the following line to your .env file:\n\n%s\n", rule)
	fmt.Fprintf(stdout, "GOOGLE_SHEETS_CREDENTIALS=%s\n%s\n", line, rule)
	fmt.Fprintf(stdout, "\nService account email (share your Google Sheet with it):\n%s\n%s\n%s\n", rule, account.ClientEmail, rule)
	fmt.Fprintf(stdout, "\nNext steps:\n")
	fmt.Fprintf(stdout, "1. Copy the GOOGLE_SHEETS_CREDENTIALS line above to your .env file\n")
	fmt.Fprintf(stdout, "2. Share your Google Sheet with the email address shown above\n")
	fmt.Fprintf(stdout, "3. Add your GOOGLE_SHEET_ID to the .env file\n")
	fmt.Fprintf(stdout, "4. Restart the server\n")
	return 0
}

// formatCredentials compacts raw to one line, keeping key order intact.
func formatCredentials(raw []byte) (string, serviceAccount, error) {
	var account serviceAccount
	if err := json.Unmarshal(raw, &account); err != nil {
		return "", account, err
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", account, err
	}
	return buf.String(), account, nil
}
