// Package rsync provides the file synchronization step of a backup run.
package rsync

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/fgeck/gorsync-homelab/internal/models"
	"github.com/rs/zerolog"
)

// Separator is appended to the source path so rsync copies the directory's
// contents rather than the directory itself.
const Separator = "/"

// InterruptedExitCode is the exit code recorded when rsync was stopped by a
// cancelled context, matching what os/exec reports for a killed process.
const InterruptedExitCode = -1

// ErrLaunch is returned when the rsync binary could not be started at all.
var ErrLaunch = errors.New("failed to launch rsync")

// Service defines the interface for rsync operations.
type Service interface {
	Sync(ctx context.Context, settings models.SyncSettings) (*models.SyncResult, error)
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

// exitCoder is satisfied by *exec.ExitError.
type exitCoder interface {
	ExitCode() int
}

// Impl implements the Service interface.
type Impl struct {
	executor CommandExecutor
	logger   zerolog.Logger
}

// New creates a new rsync service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		logger:   logger,
	}
}

// NewWithExecutor creates a new rsync service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, executor CommandExecutor) *Impl {
	return &Impl{
		executor: executor,
		logger:   logger,
	}
}

// NormalizeSource appends a trailing separator to a non-empty source path.
func NormalizeSource(source string) string {
	if source == "" || strings.HasSuffix(source, Separator) {
		return source
	}
	return source + Separator
}

// BuildArgs returns the rsync arguments for an archive-mode mirror.
func BuildArgs(settings models.SyncSettings) []string {
	return []string{
		"-a",
		"--exclude=lost+found/",
		"--stats",
		"--human-readable",
		NormalizeSource(settings.Source),
		settings.Destination,
	}
}

// LookPath resolves the rsync binary without running it.
func LookPath(binary string) (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	return path, nil
}

// Sync mirrors the source tree into the destination. A nonzero rsync exit is
// reported through the result, as is a context cancelled before rsync could
// start. Only a launch failure is returned as an error.
func (s *Impl) Sync(ctx context.Context, settings models.SyncSettings) (*models.SyncResult, error) {
	args := BuildArgs(settings)

	s.logger.Info().
		Str("binary", settings.Binary).
		Strs("args", args).
		Msg("starting sync")

	start := time.Now()
	output, err := s.executor.Execute(ctx, settings.Binary, args...)
	result := &models.SyncResult{
		Output:   string(output),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr exitCoder
		switch {
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			// Interrupted before rsync started. Reported like a killed rsync.
			result.ExitCode = InterruptedExitCode
			result.Output = fmt.Sprintf("rsync not started: %v", err)
		default:
			return nil, fmt.Errorf("%w: %s: %w", ErrLaunch, settings.Binary, err)
		}
	}

	s.logger.Info().
		Int("exit_code", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("sync finished")

	return result, nil
}
