// Package logfile appends run reports to the operator's backup log.
package logfile

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Service defines the interface for backup log operations.
type Service interface {
	Append(path, block string) error
}

// Impl implements the logfile Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new logfile service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// Append writes block to the end of the log at path in a single write while
// holding an exclusive flock, so concurrent writers never interleave reports.
// The file is created if it does not exist.
func (s *Impl) Append(path, block string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640) //nolint:gosec // path is operator configured
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to lock log file %s: %w", path, err)
	}

	_, writeErr := f.WriteString(block)
	_ = unix.Flock(fd, unix.LOCK_UN)
	closeErr := f.Close()

	if writeErr != nil {
		return fmt.Errorf("failed to write log file: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close log file: %w", closeErr)
	}

	s.logger.Debug().Str("path", path).Int("bytes", len(block)).Msg("log entry appended")
	return nil
}
