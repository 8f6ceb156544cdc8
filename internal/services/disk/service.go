// Package disk spins down the backup disk after a run.
package disk

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/fgeck/gorsync-homelab/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for disk sleep operations.
type Service interface {
	Sleep(ctx context.Context, cfg *models.DiskConfig) models.DiskSleepOutcome
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Execute runs a command and returns its combined output.
func (e *DefaultExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Impl implements the disk Service interface.
type Impl struct {
	executor CommandExecutor
	logger   zerolog.Logger
}

// New creates a new disk service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		logger:   logger,
	}
}

// NewWithExecutor creates a new disk service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, executor CommandExecutor) *Impl {
	return &Impl{
		executor: executor,
		logger:   logger,
	}
}

// Sleep resolves the configured filesystem UUID to a device and asks the
// drive to enter standby. It never returns an error; every failure is
// captured in the outcome.
func (s *Impl) Sleep(ctx context.Context, cfg *models.DiskConfig) models.DiskSleepOutcome {
	if cfg == nil || cfg.UUID == "" {
		return models.DiskSleepOutcome{Status: models.DiskSleepNotConfigured}
	}

	s.logger.Info().Str("uuid", cfg.UUID).Msg("resolving backup disk")

	output, err := s.executor.Execute(ctx, "blkid", "-U", cfg.UUID)
	if err != nil {
		return s.failed(classify(models.DiskSleepResolveFailed, err), "",
			fmt.Errorf("failed to resolve UUID %s: %w%s", cfg.UUID, err, formatOutput(output)))
	}

	device := strings.TrimSpace(string(output))
	if device == "" {
		return s.failed(models.DiskSleepResolveFailed, "",
			fmt.Errorf("blkid returned no device for UUID %s", cfg.UUID))
	}

	name, args := "hdparm", []string{"-y", device}
	if cfg.UseSudo {
		name, args = "sudo", append([]string{"-n", "hdparm"}, args...)
	}

	s.logger.Debug().Str("command", name).Strs("args", args).Msg("putting disk to sleep")

	output, err = s.executor.Execute(ctx, name, args...)
	if err != nil {
		return s.failed(classify(models.DiskSleepCommandFailed, err), device,
			fmt.Errorf("failed to put %s to sleep: %w%s", device, err, formatOutput(output)))
	}

	s.logger.Info().Str("device", device).Msg("disk put to sleep")

	return models.DiskSleepOutcome{
		Status: models.DiskSleepSuccess,
		Device: device,
	}
}

// classify keeps status for commands that ran and exited nonzero, and
// reports anything else (missing binary, cancelled context) as unexpected.
func classify(status models.DiskSleepStatus, err error) models.DiskSleepStatus {
	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) {
		return status
	}
	return models.DiskSleepUnexpected
}

func (s *Impl) failed(status models.DiskSleepStatus, device string, err error) models.DiskSleepOutcome {
	s.logger.Warn().Err(err).Str("status", string(status)).Msg("disk sleep failed")

	return models.DiskSleepOutcome{
		Status: status,
		Device: device,
		Error:  err,
	}
}

func formatOutput(output []byte) string {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return ""
	}
	return ", output: " + trimmed
}
