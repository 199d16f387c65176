package env

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is an exclusive advisory lock on an environment path, held for the
// duration of a comparison run.
type Lock struct {
	fl *flock.Flock
}

// LockPath returns the lock file used for envPath.
func LockPath(envPath string) string {
	return CanonicalPath(envPath) + ".lock"
}

// AcquireLock takes the lock for envPath without blocking.
// Returns ErrEnvironmentBusy if another run holds it.
func AcquireLock(envPath string) (*Lock, error) {
	path := LockPath(envPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		_ = fl.Close()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		_ = fl.Close()
		return nil, fmt.Errorf("%w: %s", ErrEnvironmentBusy, path)
	}
	return &Lock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Close()
}
