// Package main posts a sample mentorship application to a running intake
// service and prints the response.
//
// Usage:
//
//	go run ./cmd/tools/smoke-submit
//	go run ./cmd/tools/smoke-submit --variant=simple --url=https://forms.example.com
//
// A 200 response means both emails went out; check the admin inbox, the
// applicant inbox and, when configured, the spreadsheet.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var samples = map[string]struct {
	path    string
	payload map[string]any
}{
	"extended": {
		path: "/api/submit-application",
		payload: map[string]any{
			"name":         "John Doe",
			"email":        "john.doe.test@example.com",
			"phone":        "9876543210",
			"college":      "MIT - Massachusetts Institute of Technology",
			"year":         "3rd Year",
			"why":          "I am passionate about learning new technologies and want to improve my coding skills.",
			"expectations": "I expect to learn advanced programming concepts and work on real-world projects.",
			"experience":   "I have been coding for 2 years in Python and JavaScript.",
			"commitment":   true,
		},
	},
	"simple": {
		path: "/submit",
		payload: map[string]any{
			"name":     "John Doe",
			"email":    "john.doe.test@example.com",
			"whatsapp": "9876543210",
			"role":     "Student",
		},
	},
}

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "Base URL of the intake service")
	variant := flag.String("variant", "extended", "Form variant to submit (simple or extended)")
	timeout := flag.Duration("timeout", 30*time.Second, "Request timeout")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: smoke-submit [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Post a sample application and print the response.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ok, err := submit(ctx, http.DefaultClient, *baseURL, *variant, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

// submit posts the sample for variant and reports whether the service
// answered 200.
func submit(ctx context.Context, client *http.Client, baseURL, variant string, out io.Writer) (bool, error) {
	sample, found := samples[variant]
	if !found {
		return false, fmt.Errorf("unknown variant %q", variant)
	}

	body, err := json.Marshal(sample.payload)
	if err != nil {
		return false, fmt.Errorf("encoding sample: %w", err)
	}

	endpoint := strings.TrimRight(baseURL, "/") + sample.path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	fmt.Fprintf(out, "POST %s\n%s\n", endpoint, body)

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed (is the server running at %s?): %w", baseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("reading response: %w", err)
	}

	fmt.Fprintf(out, "\nStatus:   %d\nResponse: %s\n", resp.StatusCode, respBody)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintln(out, "\nSubmission failed.")
		return false, nil
	}
	fmt.Fprintln(out, "\nSubmitted. Check the admin inbox, the applicant inbox and the spreadsheet.")
	return true, nil
}
