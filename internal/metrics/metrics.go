// Package metrics implements the telemetry backends selected by
// METRICS_BACKEND: Prometheus (scraped at /metrics), CloudWatch (pushed in
// batches) or none.
package metrics

import "time"

// Collector is everything the service reports.
type Collector interface {
	RecordRequest(method, route, status string, duration time.Duration)
	RecordSubmission(variant, outcome string)
	RecordSheetsAppend(variant, outcome string)
}

// Submission outcomes.
const (
	SubmissionSubmitted = "submitted"
	SubmissionInvalid   = "invalid"
	SubmissionFailed    = "failed"
)

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordRequest(string, string, string, time.Duration) {}
func (Nop) RecordSubmission(string, string)                     {}
func (Nop) RecordSheetsAppend(string, string)                   {}

var _ Collector = Nop{}
