// Package runner orchestrates one backup run.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/fgeck/gorsync-homelab/internal/models"
	"github.com/fgeck/gorsync-homelab/internal/services/disk"
	"github.com/fgeck/gorsync-homelab/internal/services/lock"
	"github.com/fgeck/gorsync-homelab/internal/services/logfile"
	"github.com/fgeck/gorsync-homelab/internal/services/metrics"
	"github.com/fgeck/gorsync-homelab/internal/services/report"
	"github.com/fgeck/gorsync-homelab/internal/services/rsync"
	"github.com/fgeck/gorsync-homelab/internal/services/ssh"
	"github.com/fgeck/gorsync-homelab/internal/services/telegram"
	"github.com/fgeck/gorsync-homelab/internal/services/wol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service defines the interface for the backup runner.
type Service interface {
	Run(ctx context.Context, cfg models.BackupConfig) (*models.RunResult, error)
}

// Services bundles the collaborators of a run. Nil fields are replaced with
// the real implementations by NewWithServices.
type Services struct {
	Rsync    rsync.Service
	Disk     disk.Service
	Telegram telegram.Service
	WOL      wol.Service
	SSH      ssh.Service
	LogFile  logfile.Service
	Lock     lock.Service
	Metrics  metrics.Service
	Now      func() time.Time
	NewID    func() string
}

// Impl implements the runner Service interface.
type Impl struct {
	svc    Services
	logger zerolog.Logger
}

// New creates a new runner service.
func New(logger zerolog.Logger) *Impl {
	return NewWithServices(logger, Services{})
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(logger zerolog.Logger, svc Services) *Impl {
	if svc.Rsync == nil {
		svc.Rsync = rsync.New(logger)
	}
	if svc.Disk == nil {
		svc.Disk = disk.New(logger)
	}
	if svc.Telegram == nil {
		svc.Telegram = telegram.New(logger)
	}
	if svc.WOL == nil {
		svc.WOL = wol.New(logger)
	}
	if svc.SSH == nil {
		svc.SSH = ssh.New(logger)
	}
	if svc.LogFile == nil {
		svc.LogFile = logfile.New(logger)
	}
	if svc.Lock == nil {
		svc.Lock = lock.New(logger)
	}
	if svc.Metrics == nil {
		svc.Metrics = metrics.New(logger)
	}
	if svc.Now == nil {
		svc.Now = time.Now
	}
	if svc.NewID == nil {
		svc.NewID = func() string { return uuid.NewString() }
	}

	return &Impl{
		svc:    svc,
		logger: logger,
	}
}

// Run executes one backup cycle and appends its report to the backup log.
// It returns an error only when the run could not be carried out or recorded:
// the lock is busy, rsync cannot be started or the log cannot be written.
// A failed rsync is a FAILURE report, not an error.
func (s *Impl) Run(ctx context.Context, cfg models.BackupConfig) (*models.RunResult, error) {
	start := s.svc.Now()
	runID := s.svc.NewID()
	logger := s.logger.With().Str("run_id", runID).Logger()

	settings := cfg.Sync
	settings.Source = rsync.NormalizeSource(settings.Source)

	logger.Info().
		Str("source", settings.Source).
		Str("destination", settings.Destination).
		Msg("starting backup run")

	handle, err := s.svc.Lock.Acquire(cfg.LockDir, settings.Destination)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	defer func() {
		if err := handle.Release(); err != nil {
			logger.Warn().Err(err).Str("path", handle.Path()).Msg("failed to release run lock")
		}
	}()

	in := report.Input{
		RunID:       runID,
		Source:      settings.Source,
		Destination: settings.Destination,
	}

	if cfg.WOL != nil {
		in.Wake = s.wake(ctx, logger, *cfg.WOL)
	}

	syncResult, err := s.svc.Rsync.Sync(ctx, settings)
	if err != nil {
		logger.Error().Err(err).Msg("rsync could not be started")
		return nil, fmt.Errorf("sync failed: %w", err)
	}
	in.Sync = *syncResult

	if syncResult.Succeeded() {
		logger.Info().Dur("duration", syncResult.Duration).Msg("rsync completed")
	} else {
		logger.Error().Int("exit_code", syncResult.ExitCode).Dur("duration", syncResult.Duration).Msg("rsync failed")
	}

	// The remaining steps report on a sync that already happened, so they
	// still run when the caller is being interrupted.
	finishCtx := context.WithoutCancel(ctx)

	in.DiskSleep = s.svc.Disk.Sleep(finishCtx, cfg.Disk)

	if cfg.SSHShutdown != nil {
		in.Shutdown = s.shutdown(finishCtx, logger, *cfg.SSHShutdown)
	}

	in.Timestamp = s.svc.Now()
	rep := report.Compose(in)

	var notification *models.NotificationOutcome
	switch {
	case cfg.Telegram.Enabled():
		notification = s.notify(finishCtx, logger, *cfg.Telegram, report.Format(rep))
	case cfg.Telegram != nil:
		logger.Warn().Msg("Telegram needs both BOT_TOKEN and CHAT_ID, notification skipped")
	}

	if err := s.svc.LogFile.Append(cfg.LogFile, report.LogBlock(rep, notification)); err != nil {
		logger.Error().Err(err).Str("path", cfg.LogFile).Msg("failed to write backup log")
		return nil, fmt.Errorf("failed to write backup log %s: %w", cfg.LogFile, err)
	}

	result := &models.RunResult{
		Report:          rep,
		Notification:    notification,
		DiskSleepFailed: in.DiskSleep.Failed(),
		Duration:        s.svc.Now().Sub(start),
	}

	if cfg.Metrics != nil {
		if err := s.svc.Metrics.Export(cfg.Metrics, *result); err != nil {
			logger.Warn().Err(err).Msg("failed to export metrics")
		}
	}

	logger.Info().
		Str("status", string(rep.Status)).
		Dur("duration", result.Duration).
		Msg("backup run finished")

	return result, nil
}

func (s *Impl) wake(ctx context.Context, logger zerolog.Logger, cfg models.WOLConfig) *models.WOLResult {
	result, err := s.svc.WOL.Wake(ctx, cfg)
	if err != nil {
		result = &models.WOLResult{Error: err}
	}

	if result.Error != nil {
		logger.Warn().Err(result.Error).Msg("Wake-on-LAN failed, continuing with sync")
	} else {
		logger.Info().
			Bool("target_ready", result.TargetReady).
			Dur("wait_duration", result.WaitDuration).
			Msg("Wake-on-LAN completed")
	}

	return result
}

func (s *Impl) shutdown(ctx context.Context, logger zerolog.Logger, cfg models.SSHShutdownConfig) *models.SSHResult {
	result, err := s.svc.SSH.Shutdown(ctx, cfg)
	if err != nil {
		result = &models.SSHResult{Error: err}
	}

	if result.Error != nil {
		logger.Warn().Err(result.Error).Str("host", cfg.Host).Msg("remote shutdown failed")
	}

	return result
}

func (s *Impl) notify(ctx context.Context, logger zerolog.Logger, cfg models.TelegramConfig, text string) *models.NotificationOutcome {
	outcome, err := s.svc.Telegram.Send(ctx, cfg, text)
	if err != nil {
		outcome = &models.NotificationOutcome{Error: err}
	}

	if outcome.Error != nil {
		logger.Error().Err(outcome.Error).Msg("failed to send Telegram notification")
	} else {
		logger.Info().Msg("Telegram notification sent")
	}

	return outcome
}
