package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrSubmitInProgress    = errors.New("a job submission is already in progress")
	ErrSubmissionCancelled = errors.New("job submission cancelled")
	ErrSubmissionFailed    = errors.New("job submission failed")
	ErrRejected            = errors.New("job rejected by backend")
	ErrJobFailed           = errors.New("job failed")
	ErrResultUnavailable   = errors.New("job result unavailable")
	ErrNoActiveJob         = errors.New("no active job")
	ErrPollingStopped      = errors.New("status polling stopped before the job finished")
	ErrPollingDegraded     = errors.New("job status polling degraded")
)

// SubmissionError is a network-level failure while creating a job.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrSubmissionFailed, e.Err)
}

func (e *SubmissionError) Unwrap() []error { return []error{ErrSubmissionFailed, e.Err} }

// RejectedError is a non-success response to job creation, typically a payload
// the backend refused.
type RejectedError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *RejectedError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s (status %d)", ErrRejected, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d): %s", ErrRejected, e.StatusCode, e.Body)
}

func (e *RejectedError) Unwrap() []error { return []error{ErrRejected, e.Err} }

// JobFailedError reports that the backend marked the job failed. It is terminal
// for that job.
type JobFailedError struct {
	JobID string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed", e.JobID)
}

func (e *JobFailedError) Unwrap() error { return ErrJobFailed }

// PollingDegradedError is raised once consecutive status calls have failed
// Failures times in a row. Polling continues.
type PollingDegradedError struct {
	JobID    string
	Failures int
	Last     error
}

func (e *PollingDegradedError) Error() string {
	return fmt.Sprintf("%s: job %s: %d consecutive status failures, last: %v",
		ErrPollingDegraded, e.JobID, e.Failures, e.Last)
}

func (e *PollingDegradedError) Unwrap() []error { return []error{ErrPollingDegraded, e.Last} }
