package models

import "time"

// SyncResult holds the result of a single rsync invocation.
type SyncResult struct {
	ExitCode int
	Output   string // merged stdout and stderr
	Duration time.Duration
}

// Succeeded reports whether rsync exited with code 0.
func (r SyncResult) Succeeded() bool {
	return r.ExitCode == 0
}
