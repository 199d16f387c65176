package git

import "errors"

// ErrEmptyRef indicates a checkout was requested without a ref.
var ErrEmptyRef = errors.New("empty git ref")

// Error wraps a git command error with the operation that failed.
type Error struct {
	Op  string // Operation that failed (e.g., "clone", "checkout")
	Err error  // Underlying error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
