package positions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Logger is the subset of the application logger used by the store.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// lockAttempts bounds how long Save waits for the file lock.
const (
	lockAttempts = 20
	lockRetry    = 10 * time.Millisecond
)

// Store reads and writes the position file.
type Store struct {
	path   string
	lock   *flock.Flock
	logger Logger

	// mu serialises writers inside this process; flock only arbitrates
	// between processes.
	mu sync.Mutex
}

// New creates a store for the file at path. The file need not exist.
func New(path string) *Store {
	return &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used for load warnings.
func (s *Store) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Path returns the position file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted positions. Any failure is logged and yields
// an empty map.
func (s *Store) Load() map[string]float64 {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("position file not found, starting from zero", "path", s.path)
		} else {
			s.logger.Warn("reading position file", "path", s.path, "error", err)
		}
		return map[string]float64{}
	}

	positions := map[string]float64{}
	if err := json.Unmarshal(data, &positions); err != nil {
		s.logger.Warn("parsing position file", "path", s.path, "error", err)
		return map[string]float64{}
	}
	return positions
}

// Save replaces the file with positions.
//
// Returns:
//   - error: ErrLocked if another process holds the lock, or the I/O error
func (s *Store) Save(positions map[string]float64) error {
	data, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding positions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating position directory: %w", err)
	}

	if err := s.acquire(); err != nil {
		return err
	}
	defer s.lock.Unlock() //nolint:errcheck // Best effort release

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing position file: %w", err)
	}
	return nil
}

func (s *Store) acquire() error {
	for range lockAttempts {
		locked, err := s.lock.TryLock()
		if err != nil {
			return fmt.Errorf("locking position file: %w", err)
		}
		if locked {
			return nil
		}
		time.Sleep(lockRetry)
	}
	return ErrLocked
}
