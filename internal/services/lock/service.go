// Package lock prevents overlapping backup runs against the same destination.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// ErrLocked is returned when another run already holds the lock.
var ErrLocked = errors.New("another backup run holds the lock")

// Service defines the interface for run lock operations.
type Service interface {
	Acquire(dir, destination string) (Handle, error)
}

// Handle is a held run lock.
type Handle interface {
	Path() string
	Release() error
}

// Impl implements the lock Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new lock service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// PathFor returns the lock file used for destination. The name is a stable
// UUIDv5 of the destination so any path maps to a safe file name.
func PathFor(dir, destination string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+destination))
	return filepath.Join(dir, "gorsync-"+id.String()+".lock")
}

// Acquire takes an exclusive, non-blocking flock on the lock file for
// destination. It returns ErrLocked if the lock is busy.
func (s *Impl) Acquire(dir, destination string) (Handle, error) {
	path := PathFor(dir, destination)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) //nolint:gosec // path is derived from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	// Record the holder for operators inspecting a stuck lock.
	if err := f.Truncate(0); err == nil {
		_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	}

	s.logger.Debug().Str("path", path).Msg("run lock acquired")

	return &fileHandle{file: f, path: path}, nil
}

type fileHandle struct {
	file *os.File
	path string
}

func (h *fileHandle) Path() string {
	return h.path
}

// Release unlocks and closes the lock file. The file itself is left in place;
// removing it would let a waiter lock an orphaned inode.
func (h *fileHandle) Release() error {
	if h.file == nil {
		return nil
	}
	err := unix.Flock(int(h.file.Fd()), unix.LOCK_UN)
	closeErr := h.file.Close()
	h.file = nil
	if err != nil {
		return fmt.Errorf("failed to unlock %s: %w", h.path, err)
	}
	return closeErr
}
