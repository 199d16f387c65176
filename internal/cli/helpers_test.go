package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refdrift/internal/command"
	"github.com/roach88/refdrift/internal/testutil"
)

const tobacURL = "https://github.com/tobac-project/tobac.git"

// isolateConfig pins every environment override the config layer reads so
// results do not depend on the developer's shell.
func isolateConfig(t *testing.T, githubAPI string) {
	t.Helper()
	t.Setenv("REFDRIFT_REPOSITORY_URL", tobacURL)
	t.Setenv("REFDRIFT_GITHUB_API", githubAPI)
	t.Setenv("REFDRIFT_PACKAGE_MANAGER", "mamba")
	t.Setenv("REFDRIFT_CHANNEL", "conda-forge")
	t.Setenv("REFDRIFT_NOTEBOOK_TIMEOUT", "600")
	t.Setenv("REFDRIFT_ARCHIVE_ENDPOINT", "")
	t.Setenv("GITHUB_TOKEN", "")
}

func newTagServer(t *testing.T, tags ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/tobac-project/tobac/tags", func(w http.ResponseWriter, r *http.Request) {
		body := make([]map[string]string, 0, len(tags))
		for _, name := range tags {
			body = append(body, map[string]string{"name": name})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, runner command.Runner, cwd string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(&RootOptions{runner: runner, cwd: cwd})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
}

func envList(paths ...string) testutil.Response {
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	return testutil.Response{Output: `{"envs": [` + strings.Join(quoted, ", ") + `]}`}
}

func packageList(tobacVersion string) testutil.Response {
	return testutil.Response{Output: `[{"name": "tobac", "version": "` + tobacVersion + `", "channel": "conda-forge"}]`}
}

func attrs(t *testing.T, values map[string]any) api.AttributeMap {
	t.Helper()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	m, err := util.NewOrderedMap(keys, values)
	require.NoError(t, err)
	return m
}

// writeTrack writes a small CDF dataset whose global "source" attribute is source.
func writeTrack(t *testing.T, path, source string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	w, err := netcdf.OpenWriter(path, netcdf.KindCDF)
	require.NoError(t, err)
	require.NoError(t, w.AddAttributes(attrs(t, map[string]any{"source": source})))
	require.NoError(t, w.AddVar("lat", api.Variable{
		Values:     []float32{10.5, 11, 11.5},
		Dimensions: []string{"index"},
		Attributes: attrs(t, map[string]any{"units": "degrees_north"}),
	}))
	require.NoError(t, w.Close())
}
