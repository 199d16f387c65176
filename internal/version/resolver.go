package version

import (
	"context"
	"io"
	"log/slog"
)

// TagLister returns the remote repository's tag names, newest first.
type TagLister interface {
	ListTags(ctx context.Context) ([]string, error)
}

// Resolver validates user-supplied revisions against a remote tag list.
type Resolver struct {
	lister TagLister
	logger *slog.Logger
}

// NewResolver creates a resolver. A nil logger discards output.
func NewResolver(lister TagLister, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{lister: lister, logger: logger}
}

// Resolve parses raw and, for tags, checks that the "v"-prefixed form is a
// remote tag. Commit hashes are returned without contacting the remote.
//
// A failed tag fetch is logged and treated as an empty tag list, so any tag
// request then fails with an *InvalidVersionError.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Spec, error) {
	spec, err := Parse(raw)
	if err != nil {
		return Spec{}, err
	}
	if spec.IsCommit() {
		r.logger.Debug("version is a commit hash, skipping tag check", "version", raw)
		return spec, nil
	}

	tags := r.tags(ctx)
	want := spec.Ref()
	for _, tag := range tags {
		if tag == want {
			r.logger.Debug("version resolved", "input", raw, "tag", want)
			return spec, nil
		}
	}

	return Spec{}, &InvalidVersionError{Input: raw, Reason: ReasonUnknownTag, ValidTags: tags}
}

func (r *Resolver) tags(ctx context.Context) []string {
	if r.lister == nil {
		return nil
	}
	tags, err := r.lister.ListTags(ctx)
	if err != nil {
		r.logger.Warn("failed to retrieve tags", "error", err)
		return nil
	}
	return tags
}
