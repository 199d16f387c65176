package tags

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoFromURL(t *testing.T) {
	tests := []struct {
		url   string
		owner string
		repo  string
		ok    bool
	}{
		{"https://github.com/tobac-project/tobac.git", "tobac-project", "tobac", true},
		{"https://github.com/tobac-project/tobac", "tobac-project", "tobac", true},
		{"https://github.com/tobac-project/tobac/", "tobac-project", "tobac", true},
		{"git@github.com:tobac-project/tobac.git", "tobac-project", "tobac", true},
		{"git@github.com:tobac", "", "", false},
		{"tobac", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			owner, repo, err := ParseRepoFromURL(tt.url)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

func newTagServer(t *testing.T, pages [][]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/repos/tobac-project/tobac/tags", func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			_, _ = fmt.Sscanf(p, "%d", &page)
		}
		if page < len(pages) {
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/tobac-project/tobac/tags?page=%d>; rel="next"`, srv.URL, page+1))
		}
		var body []map[string]string
		if page-1 < len(pages) {
			for _, name := range pages[page-1] {
				body = append(body, map[string]string{"name": name})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestListTags_SinglePage(t *testing.T) {
	srv := newTagServer(t, [][]string{{"v1.5.2", "v1.5.1"}})

	l, err := NewGitHubLister("", "https://github.com/tobac-project/tobac.git", WithBaseURL(srv.URL))
	require.NoError(t, err)

	got, err := l.ListTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.5.2", "v1.5.1"}, got)
}

func TestListTags_FollowsPagination(t *testing.T) {
	srv := newTagServer(t, [][]string{{"v1.5.2", "v1.5.1"}, {"v1.5.0"}})

	l, err := NewGitHubLister("token", "https://github.com/tobac-project/tobac.git", WithBaseURL(srv.URL), WithPerPage(2))
	require.NoError(t, err)

	got, err := l.ListTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.5.2", "v1.5.1", "v1.5.0"}, got)
}

func TestListTags_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"rate limited"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	l, err := NewGitHubLister("", "https://github.com/tobac-project/tobac", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = l.ListTags(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tobac-project/tobac")
}

func TestNewGitHubLister_InvalidURL(t *testing.T) {
	_, err := NewGitHubLister("", "not-a-url")
	assert.Error(t, err)
}

func TestWithPerPage_Invalid(t *testing.T) {
	_, err := NewGitHubLister("", "https://github.com/tobac-project/tobac", WithPerPage(0))
	assert.Error(t, err)
}
