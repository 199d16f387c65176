package env

import "errors"

var (
	// ErrUnsupportedVersion indicates a version.Spec of unknown kind.
	ErrUnsupportedVersion = errors.New("unsupported version kind")

	// ErrEnvironmentMissing indicates reuse was requested for an environment
	// that does not exist.
	ErrEnvironmentMissing = errors.New("environment does not exist")

	// ErrEnvironmentBusy indicates another run holds the environment lock.
	ErrEnvironmentBusy = errors.New("environment is locked by another run")

	// ErrMissingSourceURL indicates a commit install without a repository to clone.
	ErrMissingSourceURL = errors.New("source URL is required for commit installs")
)
