package version

import (
	"errors"
	"fmt"
	"strings"
)

// Reason explains why a version was rejected.
type Reason string

const (
	// ReasonShape means the input is neither a semantic tag nor a commit hash.
	ReasonShape Reason = "unrecognized version format"
	// ReasonUnknownTag means the tag is well-formed but not in the remote tag list.
	ReasonUnknownTag Reason = "unknown tag"
	// ReasonNotATag means a tag-only operation was applied to a commit.
	ReasonNotATag Reason = "not a tag"
)

// InvalidVersionError is returned for unusable version input. It is fatal for
// a comparison run; the message lists the valid tags when they are known.
type InvalidVersionError struct {
	Input     string
	Reason    Reason
	ValidTags []string
}

func (e *InvalidVersionError) Error() string {
	msg := fmt.Sprintf("invalid version %q: %s", e.Input, e.Reason)
	if e.Reason == ReasonNotATag {
		return msg
	}
	return msg + fmt.Sprintf("; enter a valid version tag [%s] or a 40-character commit hash", strings.Join(e.ValidTags, ", "))
}

// IsInvalidVersion reports whether err is (or wraps) an *InvalidVersionError.
func IsInvalidVersion(err error) bool {
	var ive *InvalidVersionError
	return errors.As(err, &ive)
}
