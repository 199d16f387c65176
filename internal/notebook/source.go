package notebook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/refdrift/internal/git"
	"github.com/roach88/refdrift/internal/version"
)

const (
	// WorkingDirectory selects notebooks from the current working directory.
	WorkingDirectory = "wd"
	// CheckoutDir is the directory under the save location that holds a
	// notebook checkout.
	CheckoutDir = "notebooks"
)

// Source resolves a notebook selector to a root directory containing
// an "examples" subtree.
type Source struct {
	git     *git.Client
	repoURL string
	cwd     string
	logger  *slog.Logger
}

// NewSource creates a notebook source. repoURL is cloned when the selector
// names a version; cwd is used for the "wd" selector.
func NewSource(gitClient *git.Client, repoURL, cwd string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Source{git: gitClient, repoURL: repoURL, cwd: cwd, logger: logger}
}

// Root returns the notebook root for selector:
//   - "wd": the working directory
//   - an existing directory with an examples subtree: that directory
//   - otherwise a tag or commit: <saveDir>/notebooks, reused if its
//     notebooks.ref marker names the same revision, else cloned again
func (s *Source) Root(ctx context.Context, selector, saveDir string) (string, error) {
	if selector == WorkingDirectory {
		return s.cwd, nil
	}
	if hasExamples(selector) {
		return filepath.Abs(selector)
	}

	spec, err := version.Parse(selector)
	if err != nil {
		return "", fmt.Errorf("notebook source %q is not %q, a directory with %s/, a tag or a commit: %w",
			selector, WorkingDirectory, ExamplesDir, err)
	}

	checkout := filepath.Join(saveDir, CheckoutDir)
	marker := checkout + ".ref"
	if _, err := os.Stat(checkout); err == nil {
		if hasExamples(checkout) && checkoutMatches(marker, spec.Ref()) {
			s.logger.Debug("reusing notebook checkout", "path", checkout, "ref", spec.Ref())
			return checkout, nil
		}
		s.logger.Warn("existing notebook checkout does not match requested revision, cloning again",
			"path", checkout, "ref", spec.Ref())
		if err := os.RemoveAll(checkout); err != nil {
			return "", fmt.Errorf("remove stale notebook checkout: %w", err)
		}
	}

	s.logger.Info("cloning notebooks", "url", s.repoURL, "ref", spec.Ref(), "path", checkout)
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return "", fmt.Errorf("create save directory: %w", err)
	}
	if err := s.git.CloneNoCheckout(ctx, s.repoURL, checkout); err != nil {
		return "", err
	}
	if err := s.git.Checkout(ctx, checkout, spec.Ref()); err != nil {
		tags, _ := s.git.Tags(ctx, checkout)
		return "", &version.InvalidVersionError{Input: selector, Reason: version.ReasonUnknownTag, ValidTags: tags}
	}
	if err := os.WriteFile(marker, []byte(spec.Ref()+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write notebook checkout marker: %w", err)
	}
	return checkout, nil
}

func checkoutMatches(marker, ref string) bool {
	recorded, err := os.ReadFile(marker)
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(string(recorded)), ref)
}

func hasExamples(dir string) bool {
	if strings.TrimSpace(dir) == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, ExamplesDir))
	return err == nil && info.IsDir()
}
