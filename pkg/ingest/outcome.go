package ingest

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// StatusOK marks a successfully synchronized dictionary.
const StatusOK = "ok"

// statusErrorPrefix prefixes the status of a failed dictionary.
const statusErrorPrefix = "error: "

// Outcome is the result of synchronizing one dictionary in a batch.
type Outcome struct {
	Identifier string `json:"identifier"`
	Records    int    `json:"records"`
	Status     string `json:"status"`

	err error
}

func okOutcome(identifier string, records int) Outcome {
	return Outcome{Identifier: identifier, Records: records, Status: StatusOK}
}

func failedOutcome(identifier string, err error) Outcome {
	return Outcome{
		Identifier: identifier,
		Records:    0,
		Status:     statusErrorPrefix + err.Error(),
		err:        err,
	}
}

// OK reports whether the dictionary was stored.
func (o Outcome) OK() bool {
	return o.Status == StatusOK
}

// Err returns the failure behind the outcome, or nil when it succeeded.
// Outcomes decoded from JSON carry only the status text.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	if o.err != nil {
		return o.err
	}
	return fmt.Errorf("%s", o.Status)
}

// Report is the ordered result of one batch run.
type Report struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Summary   []Outcome     `json:"summary"`
}

// Saved returns the number of records stored across the batch.
func (r Report) Saved() int {
	total := 0
	for _, o := range r.Summary {
		total += o.Records
	}
	return total
}

// Failed returns the number of dictionaries that failed.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Summary {
		if !o.OK() {
			n++
		}
	}
	return n
}

// Err combines the failures of the batch, or returns nil if every
// dictionary was stored.
func (r Report) Err() error {
	var result *multierror.Error
	for _, o := range r.Summary {
		if err := o.Err(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", o.Identifier, err))
		}
	}
	return result.ErrorOrNil()
}

// DownloadOutcome is the result of downloading one dictionary without saving it.
type DownloadOutcome struct {
	Identifier string
	Records    int
	Err        error
}
