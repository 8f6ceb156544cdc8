// Package models contains the data structures used throughout gorsync-homelab.
package models

// BackupConfig holds the complete configuration for a backup run.
type BackupConfig struct {
	Sync        SyncSettings
	LogFile     string `validate:"required"`
	LockDir     string
	Disk        *DiskConfig        // nil if not configured
	Telegram    *TelegramConfig    // nil if not configured
	WOL         *WOLConfig         // nil if not configured
	SSHShutdown *SSHShutdownConfig // nil if not configured
	Metrics     *MetricsConfig     // nil if not configured
}

// SyncSettings holds rsync-specific settings.
type SyncSettings struct {
	Source      string `validate:"required"`
	Destination string `validate:"required"`
	Binary      string `validate:"required"` // rsync executable, "rsync" by default
}

// MetricsConfig holds Prometheus textfile export settings.
type MetricsConfig struct {
	TextfilePath string `validate:"required"`
}
