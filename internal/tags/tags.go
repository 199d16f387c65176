// Package tags lists release tags of a GitHub repository.
package tags

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

const defaultPerPage = 100

// GitHubLister fetches tag names through the GitHub REST API.
type GitHubLister struct {
	client  *github.Client
	owner   string
	repo    string
	perPage int
}

// Option configures GitHubLister.
type Option func(*GitHubLister) error

// WithBaseURL points the client at a different API root (GitHub Enterprise,
// or an httptest server in tests).
func WithBaseURL(base string) Option {
	return func(l *GitHubLister) error {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("parse base URL: %w", err)
		}
		l.client.BaseURL = u
		return nil
	}
}

// WithPerPage sets the page size used when listing tags.
func WithPerPage(n int) Option {
	return func(l *GitHubLister) error {
		if n <= 0 {
			return fmt.Errorf("page size must be positive, got %d", n)
		}
		l.perPage = n
		return nil
	}
}

// NewGitHubLister creates a lister for the repository at repoURL.
// token is optional; without it requests are unauthenticated and subject to
// GitHub's anonymous rate limit.
func NewGitHubLister(token, repoURL string, opts ...Option) (*GitHubLister, error) {
	owner, repo, err := ParseRepoFromURL(repoURL)
	if err != nil {
		return nil, fmt.Errorf("parse repository URL: %w", err)
	}

	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	l := &GitHubLister{
		client:  github.NewClient(httpClient),
		owner:   owner,
		repo:    repo,
		perPage: defaultPerPage,
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Repository returns "owner/repo".
func (l *GitHubLister) Repository() string {
	return l.owner + "/" + l.repo
}

// ListTags returns every tag name in the order the API reports them,
// following pagination until the last page.
func (l *GitHubLister) ListTags(ctx context.Context) ([]string, error) {
	var names []string
	opts := &github.ListOptions{PerPage: l.perPage}

	for {
		page, resp, err := l.client.Repositories.ListTags(ctx, l.owner, l.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list tags for %s: %w", l.Repository(), err)
		}
		for _, tag := range page {
			names = append(names, tag.GetName())
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return names, nil
}

// ParseRepoFromURL extracts owner and repository from a git remote URL.
// Accepts "https://github.com/owner/repo(.git)" and "git@github.com:owner/repo(.git)".
func ParseRepoFromURL(remoteURL string) (owner, repo string, err error) {
	remoteURL = strings.TrimSpace(remoteURL)
	if strings.HasPrefix(remoteURL, "git@") {
		parts := strings.Split(remoteURL, ":")
		if len(parts) != 2 {
			return "", "", fmt.Errorf("invalid SSH URL format")
		}
		path := strings.TrimSuffix(parts[1], ".git")
		pathParts := strings.Split(path, "/")
		if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] == "" {
			return "", "", fmt.Errorf("invalid repository path")
		}
		return pathParts[0], pathParts[1], nil
	}

	remoteURL = strings.TrimPrefix(remoteURL, "https://")
	remoteURL = strings.TrimPrefix(remoteURL, "http://")
	remoteURL = strings.TrimSuffix(remoteURL, "/")
	remoteURL = strings.TrimSuffix(remoteURL, ".git")

	parts := strings.Split(remoteURL, "/")
	if len(parts) < 3 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("invalid URL format")
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
