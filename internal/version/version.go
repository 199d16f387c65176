// Package version parses and validates the library revisions a comparison run
// is pinned to.
//
// A revision is either a semantic release tag ("1.5.2" or "v1.5.2") or a
// 40-character commit hash. Tags must exist in the remote tag list; hashes are
// accepted as-is because they are not tags.
package version

import (
	"regexp"
	"strings"

	"github.com/blang/semver/v4"
)

// Kind distinguishes the two accepted revision shapes.
type Kind int

const (
	// KindTag is a semantic release tag (MAJOR.MINOR.PATCH).
	KindTag Kind = iota + 1
	// KindCommit is a 40-hex-character commit hash.
	KindCommit
)

func (k Kind) String() string {
	switch k {
	case KindTag:
		return "tag"
	case KindCommit:
		return "commit"
	default:
		return "unknown"
	}
}

var (
	tagPattern    = regexp.MustCompile(`^v?\d+\.\d+\.\d+$`)
	commitPattern = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
)

// Spec is a parsed revision. The zero value is invalid.
type Spec struct {
	kind  Kind
	value string // tag without leading "v", or the commit hash unchanged
}

// Parse classifies raw by shape. It does not consult the remote tag list.
func Parse(raw string) (Spec, error) {
	switch {
	case commitPattern.MatchString(raw):
		return Spec{kind: KindCommit, value: raw}, nil
	case tagPattern.MatchString(raw):
		return Spec{kind: KindTag, value: strings.TrimPrefix(raw, "v")}, nil
	default:
		return Spec{}, &InvalidVersionError{Input: raw, Reason: ReasonShape}
	}
}

// Kind returns the revision shape.
func (s Spec) Kind() Kind { return s.kind }

// IsTag reports whether s is a release tag.
func (s Spec) IsTag() bool { return s.kind == KindTag }

// IsCommit reports whether s is a commit hash.
func (s Spec) IsCommit() bool { return s.kind == KindCommit }

// String returns the canonical form: the tag without its leading "v", or the
// commit hash unchanged.
func (s Spec) String() string { return s.value }

// Ref returns the git ref to check out: "v"-prefixed for tags, the hash for commits.
func (s Spec) Ref() string {
	if s.kind == KindTag {
		return "v" + s.value
	}
	return s.value
}

// Semver returns the parsed semantic version of a tag.
// Leading zeros in components are tolerated.
func (s Spec) Semver() (semver.Version, error) {
	if s.kind != KindTag {
		return semver.Version{}, &InvalidVersionError{Input: s.value, Reason: ReasonNotATag}
	}
	return semver.ParseTolerant(s.value)
}

// Direction describes how "to" relates to "from": "upgrade", "downgrade",
// "same" or "unordered" when either side is not a tag.
func Direction(from, to Spec) string {
	a, errA := from.Semver()
	b, errB := to.Semver()
	if errA != nil || errB != nil {
		return "unordered"
	}
	switch a.Compare(b) {
	case -1:
		return "upgrade"
	case 1:
		return "downgrade"
	default:
		return "same"
	}
}
