package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/refdrift/internal/command"
)

// Client runs git commands.
type Client struct {
	runner command.Runner
	binary string
}

// Option configures Client.
type Option func(*Client)

// WithBinary sets the git executable. Default is "git".
func WithBinary(binary string) Option {
	return func(c *Client) {
		c.binary = binary
	}
}

// New creates a git client that executes commands through runner.
func New(runner command.Runner, opts ...Option) *Client {
	c := &Client{runner: runner, binary: "git"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CloneNoCheckout clones url into dest without populating the working tree.
// The parent of dest must exist.
func (c *Client) CloneNoCheckout(ctx context.Context, url, dest string) error {
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return &Error{Op: "clone", Err: fmt.Errorf("resolve path: %w", err)}
	}
	if _, err := c.run(ctx, filepath.Dir(absDest), "clone", "--no-checkout", url, absDest); err != nil {
		return &Error{Op: "clone", Err: err}
	}
	return nil
}

// Checkout switches repoPath to ref (tag, branch or commit).
func (c *Client) Checkout(ctx context.Context, repoPath, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return &Error{Op: "checkout", Err: ErrEmptyRef}
	}
	if _, err := c.run(ctx, repoPath, "checkout", ref); err != nil {
		return &Error{Op: "checkout", Err: err}
	}
	return nil
}

// HeadCommit returns the full SHA checked out in repoPath.
func (c *Client) HeadCommit(ctx context.Context, repoPath string) (string, error) {
	sha, err := c.run(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", &Error{Op: "get HEAD commit", Err: err}
	}
	return strings.TrimSpace(sha), nil
}

// Tags lists the tags known to the clone at repoPath.
func (c *Client) Tags(ctx context.Context, repoPath string) ([]string, error) {
	out, err := c.run(ctx, repoPath, "tag", "--list", "--sort=-creatordate")
	if err != nil {
		return nil, &Error{Op: "list tags", Err: err}
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

func (c *Client) run(ctx context.Context, dir string, args ...string) (string, error) {
	return c.runner.Run(ctx, dir, c.binary, args...)
}
