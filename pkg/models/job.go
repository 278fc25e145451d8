// Package models contains the data shared across the magclient packages.
package models

import "strings"

// JobStatus is the backend-reported state of a processing job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ParseJobStatus maps a status string from GET /jobs/{id}/status to a JobStatus.
// The older backend reported "created" and "pending" before a job started; both
// read as queued. Anything else is rejected.
func ParseJobStatus(s string) (JobStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued", "created", "pending":
		return JobStatusQueued, true
	case "running":
		return JobStatusRunning, true
	case "completed":
		return JobStatusCompleted, true
	case "failed":
		return JobStatusFailed, true
	default:
		return "", false
	}
}

// Terminal reports whether no further polling happens once the status is reached.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the single server-side job tracked by a client session.
// Result stays nil until Status is completed and the result has been fetched.
type Job struct {
	ID     string      `json:"id"`
	Status JobStatus   `json:"status"`
	Result []ResultRow `json:"result,omitempty"`
}
