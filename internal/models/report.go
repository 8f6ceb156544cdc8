package models

import "time"

// NotConfigured is recorded for optional steps that are switched off, such as
// a missing disk UUID or absent Telegram credentials.
const NotConfigured = "not configured"

// RunStatus is the overall classification of a backup run.
type RunStatus string

// Run statuses.
const (
	StatusSuccess RunStatus = "SUCCESS"
	StatusFailure RunStatus = "FAILURE"
)

// RunReport is the immutable summary of one backup run.
type RunReport struct {
	RunID       string
	Timestamp   time.Time
	Status      RunStatus
	Source      string
	Destination string
	ErrorCode   *int // nil on success
	Details     string
	DiskSleep   string
	Wake        string // empty if WOL is not configured
	Shutdown    string // empty if SSH shutdown is not configured
}

// RunResult is returned by the runner once the log entry has been written.
type RunResult struct {
	Report          RunReport
	Notification    *NotificationOutcome // nil if Telegram is not configured
	DiskSleepFailed bool
	Duration        time.Duration
}
