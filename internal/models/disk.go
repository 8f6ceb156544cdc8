package models

// DiskConfig holds backup disk spin-down configuration.
type DiskConfig struct {
	UUID    string
	UseSudo bool // prefix hdparm with "sudo -n"
}

// DiskSleepStatus classifies the outcome of the disk sleep step.
type DiskSleepStatus string

// Disk sleep statuses.
const (
	DiskSleepNotConfigured DiskSleepStatus = "not_configured"
	DiskSleepSuccess       DiskSleepStatus = "success"
	DiskSleepResolveFailed DiskSleepStatus = "resolve_failed"
	DiskSleepCommandFailed DiskSleepStatus = "command_failed"
	DiskSleepUnexpected    DiskSleepStatus = "unexpected_error"
)

// DiskSleepOutcome holds the result of the disk sleep step.
type DiskSleepOutcome struct {
	Status DiskSleepStatus
	Device string // empty unless the UUID was resolved
	Error  error
}

// Failed reports whether a configured disk sleep did not complete.
func (o DiskSleepOutcome) Failed() bool {
	return o.Status != DiskSleepSuccess && o.Status != DiskSleepNotConfigured
}
