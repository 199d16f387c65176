package notebook

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Policy holds exclusion patterns keyed by the reason for skipping.
// Patterns are doublestar globs matched against slash-separated paths
// relative to the examples directory.
type Policy struct {
	Exclusions map[string][]string
}

// DefaultPolicy excludes Jupyter checkpoint copies.
func DefaultPolicy() Policy {
	return Policy{Exclusions: map[string][]string{
		"jupyter checkpoint copy": {"**/.ipynb_checkpoints/**"},
	}}
}

// Validate checks that every pattern is a well-formed glob.
func (p Policy) Validate() error {
	for reason, patterns := range p.Exclusions {
		for _, pattern := range patterns {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("exclusion %q: invalid pattern %q", reason, pattern)
			}
		}
	}
	return nil
}

// Excluded reports whether rel matches an exclusion, and why.
// Reasons are checked in sorted order so the reported reason is stable.
func (p Policy) Excluded(rel string) (string, bool) {
	rel = filepath.ToSlash(rel)
	reasons := make([]string, 0, len(p.Exclusions))
	for reason := range p.Exclusions {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	for _, reason := range reasons {
		for _, pattern := range p.Exclusions[reason] {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return reason, true
			}
		}
	}
	return "", false
}
