package domain

import "strings"

// Status is the lifecycle state of an analysis.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSubmitted Status = "SUBMITTED"
	StatusRunnable  Status = "RUNNABLE"
	StatusStarting  Status = "STARTING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusAborted   Status = "ABORTED"
)

// AllStatuses lists every member of the enumeration.
var AllStatuses = []Status{
	StatusPending,
	StatusSubmitted,
	StatusRunnable,
	StatusStarting,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
	StatusAborted,
}

// PatchStatuses are the targets accepted by a status update. SUBMITTED and
// PENDING are only reachable through creation.
var PatchStatuses = []Status{
	StatusRunnable,
	StatusStarting,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
	StatusAborted,
}

func NormalizeStatus(raw string) Status {
	candidate := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, status := range AllStatuses {
		if candidate == status {
			return status
		}
	}
	return ""
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusAborted:
		return true
	}
	return false
}

// IsAbortable reports whether an abort request is accepted in this status.
func (s Status) IsAbortable() bool {
	return s == StatusStarting || s == StatusRunning
}

// IsPatchTarget reports whether the status is a valid update target.
func (s Status) IsPatchTarget() bool {
	for _, status := range PatchStatuses {
		if s == status {
			return true
		}
	}
	return false
}
