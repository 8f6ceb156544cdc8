// Package report builds the run report and renders it as operator text.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/fgeck/gorsync-homelab/internal/models"
)

// TimestampFormat is the layout of the report header timestamp.
const TimestampFormat = "2006-01-02 15:04:05"

// Input collects everything a report is derived from.
type Input struct {
	RunID       string
	Timestamp   time.Time
	Source      string
	Destination string
	Sync        models.SyncResult
	DiskSleep   models.DiskSleepOutcome
	Wake        *models.WOLResult // nil if WOL is not configured
	Shutdown    *models.SSHResult // nil if SSH shutdown is not configured
}

// Compose derives an immutable RunReport. Status depends only on the rsync
// exit code.
func Compose(in Input) models.RunReport {
	r := models.RunReport{
		RunID:       in.RunID,
		Timestamp:   in.Timestamp,
		Status:      models.StatusSuccess,
		Source:      in.Source,
		Destination: in.Destination,
		Details:     in.Sync.Output,
		DiskSleep:   DescribeDiskSleep(in.DiskSleep),
	}

	if !in.Sync.Succeeded() {
		code := in.Sync.ExitCode
		r.Status = models.StatusFailure
		r.ErrorCode = &code
	}

	if in.Wake != nil {
		r.Wake = DescribeWake(*in.Wake)
	}
	if in.Shutdown != nil {
		r.Shutdown = DescribeShutdown(*in.Shutdown)
	}

	return r
}

// DescribeDiskSleep renders a disk sleep outcome for the report.
func DescribeDiskSleep(o models.DiskSleepOutcome) string {
	switch o.Status {
	case models.DiskSleepSuccess:
		return fmt.Sprintf("OK, disk %s put to sleep", o.Device)
	case models.DiskSleepResolveFailed:
		return fmt.Sprintf("FAILED to resolve backup disk: %v", o.Error)
	case models.DiskSleepCommandFailed:
		return fmt.Sprintf("FAILED to put disk %s to sleep: %v", o.Device, o.Error)
	case models.DiskSleepUnexpected:
		return fmt.Sprintf("FAILED with unexpected error: %v", o.Error)
	default:
		return models.NotConfigured
	}
}

// DescribeWake renders a Wake-on-LAN result for the report.
func DescribeWake(r models.WOLResult) string {
	switch {
	case r.Error != nil:
		return fmt.Sprintf("FAILED: %v", r.Error)
	case r.TargetReady:
		return fmt.Sprintf("OK, target ready after %s", r.WaitDuration.Round(time.Second))
	default:
		return "packet sent"
	}
}

// DescribeShutdown renders an SSH shutdown result for the report.
func DescribeShutdown(r models.SSHResult) string {
	if r.ExitStatus != 0 {
		return fmt.Sprintf("FAILED (exit %d): %s", r.ExitStatus, strings.TrimSpace(r.Output))
	}
	if r.Error != nil {
		return fmt.Sprintf("FAILED: %v", r.Error)
	}
	if !r.CommandRun {
		return "FAILED: command not run"
	}
	out := strings.TrimSpace(r.Output)
	if out == "" {
		return "OK, shutdown scheduled"
	}
	return "OK, " + out
}

// Format renders the report as plain text. The result ends with a newline.
func Format(r models.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] BACKUP STATUS: %s\n", r.Timestamp.Format(TimestampFormat), r.Status)
	if r.RunID != "" {
		fmt.Fprintf(&b, "Run ID: %s\n", r.RunID)
	}
	fmt.Fprintf(&b, "Source: %s\n", r.Source)
	fmt.Fprintf(&b, "Destination: %s\n", r.Destination)
	if r.ErrorCode != nil {
		fmt.Fprintf(&b, "Error Code: %d\n", *r.ErrorCode)
	}
	if r.Wake != "" {
		fmt.Fprintf(&b, "Wake-on-LAN: %s\n", r.Wake)
	}
	b.WriteString("Details:\n")
	details := strings.TrimRight(r.Details, "\n")
	if details != "" {
		b.WriteString(details)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Disk Sleep: %s\n", r.DiskSleep)
	if r.Shutdown != "" {
		fmt.Fprintf(&b, "Remote Shutdown: %s\n", r.Shutdown)
	}

	return b.String()
}

// DescribeNotification renders the notification outcome for the log.
func DescribeNotification(o *models.NotificationOutcome) string {
	if o == nil {
		return models.NotConfigured
	}
	if o.Delivered {
		return "delivered, API response: " + o.Response
	}
	msg := "FAILED"
	if o.Error != nil {
		msg += ": " + o.Error.Error()
	}
	if o.Response != "" {
		msg += ", API response: " + o.Response
	}
	return msg
}

// LogBlock renders the complete log entry for one run: the report, the
// notification outcome line, and a terminating blank line.
func LogBlock(r models.RunReport, notification *models.NotificationOutcome) string {
	return Format(r) + "Telegram Response: " + DescribeNotification(notification) + "\n\n"
}
