package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refdrift/internal/dataset"
	"github.com/roach88/refdrift/internal/env"
	"github.com/roach88/refdrift/internal/store"
	"github.com/roach88/refdrift/internal/testutil"
)

// compareFixture is a notebook tree, a save directory and a fake package
// manager whose nbconvert step writes a Track.nc tagged with the call count.
type compareFixture struct {
	notebooks string
	save      string
	results   string
	envPath   string
	runner    *testutil.FakeRunner
}

func newCompareFixture(t *testing.T, tags ...string) *compareFixture {
	t.Helper()
	srv := newTagServer(t, tags...)
	isolateConfig(t, srv.URL)

	f := &compareFixture{
		notebooks: t.TempDir(),
		save:      t.TempDir(),
	}
	f.results = filepath.Join(f.save, "comparison_results.txt")
	f.envPath = env.CanonicalPath(filepath.Join(f.save, "realcase_testing"))
	touch(t, filepath.Join(f.notebooks, "examples", "Example_Track", "Example_Track.ipynb"))

	sources := []string{"sat-v1", "sat-v2"}
	installed := []string{"1.5.2", "1.5.3"}
	calls := 0
	f.runner = testutil.NewFakeRunner().
		On("mamba env list", envList(f.envPath)).
		On("mamba list -p "+f.envPath, packageList(installed[0])).
		On("mamba run -p "+f.envPath+" jupyter nbconvert", testutil.Response{Do: func(c testutil.Call) {
			writeTrack(t, filepath.Join(c.Dir, "Save", "Track.nc"), sources[calls%len(sources)])
			calls++
			f.runner.On("mamba list -p "+f.envPath, packageList(installed[calls%len(installed)]))
		}})
	return f
}

func (f *compareFixture) args(extra ...string) []string {
	args := []string{"compare",
		"-n", f.notebooks,
		"-1", "v1.5.2",
		"-2", "v1.5.3",
		"-s", f.save,
		"--results", f.results,
	}
	return append(args, extra...)
}

type compareJSON struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
	Data   struct {
		RunID       string   `json:"run_id"`
		SaveDir     string   `json:"save_dir"`
		Installed1  string   `json:"installed1"`
		Installed2  string   `json:"installed2"`
		Notebooks   []string `json:"notebooks"`
		Comparisons []struct {
			Report dataset.Report `json:"report"`
			Digest string         `json:"digest"`
		} `json:"comparisons"`
		Final string `json:"final"`
	} `json:"data"`
	Error *CLIError `json:"error"`
}

func TestCompare_EndToEndJSON(t *testing.T) {
	f := newCompareFixture(t, "v1.5.3", "v1.5.2")

	out, err := execute(t, f.runner, t.TempDir(), f.args("--format", "json")...)
	require.NoError(t, err)

	var resp compareJSON
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, resp.RunID, resp.Data.RunID)
	assert.Equal(t, "Done", resp.Data.Final)
	assert.Equal(t, "1.5.2", resp.Data.Installed1)
	assert.Equal(t, "1.5.3", resp.Data.Installed2)

	require.Len(t, resp.Data.Comparisons, 1)
	c := resp.Data.Comparisons[0]
	assert.Equal(t, []dataset.Finding{{Kind: dataset.GlobalAttributeMismatch, Name: "source"}}, c.Report.Findings)
	assert.True(t, strings.HasSuffix(c.Report.Source, filepath.Join("source_reference_data", "Example_Track", "Save", "Track.nc")))
	assert.True(t, strings.HasSuffix(c.Report.Target, filepath.Join("target_reference_data", "Example_Track", "Save", "Track.nc")))
	assert.Len(t, c.Digest, 64)

	results, err := os.ReadFile(f.results)
	require.NoError(t, err)
	assert.Contains(t, string(results), "=== run "+resp.RunID+": 1.5.2 -> 1.5.3")
	assert.Contains(t, string(results), ": Different\nGlobal attribute 'source' differs.\n")
	assert.Contains(t, string(results), "=== 0 same, 1 different, 0 without counterpart ===")

	st, err := store.Open(filepath.Join(f.save, LedgerFile))
	require.NoError(t, err)
	defer st.Close()
	run, err := st.GetRun(t.Context(), resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusSucceeded, run.Status)
	assert.Equal(t, 1, run.Comparisons)
	assert.Equal(t, 1, run.Different)
	assert.Equal(t, "1.5.2", run.Installed1)
	assert.Equal(t, "1.5.3", run.Installed2)
}

func TestCompare_TextOutputMirrorsResults(t *testing.T) {
	f := newCompareFixture(t, "v1.5.3", "v1.5.2")

	out, err := execute(t, f.runner, t.TempDir(), f.args()...)
	require.NoError(t, err)

	assert.Contains(t, out, "Comparison result for ")
	assert.Contains(t, out, "Global attribute 'source' differs.")
	assert.Contains(t, out, "1 compared, 1 different, 0 without counterpart")
	assert.Contains(t, out, "Results appended to "+f.results)
}

func TestCompare_InstallsBothVersions(t *testing.T) {
	f := newCompareFixture(t, "v1.5.3", "v1.5.2")

	_, err := execute(t, f.runner, t.TempDir(), f.args()...)
	require.NoError(t, err)

	var installs []string
	for _, line := range f.runner.Lines() {
		if strings.HasPrefix(line, "mamba install") {
			installs = append(installs, line)
		}
	}
	require.Len(t, installs, 2)
	assert.Contains(t, installs[0], "tobac=1.5.2")
	assert.Contains(t, installs[1], "tobac=1.5.3")
}

func TestCompare_InvalidVersionShape(t *testing.T) {
	f := newCompareFixture(t, "v1.5.2")

	_, err := execute(t, f.runner, t.TempDir(), "compare", "-n", f.notebooks, "-1", "latest", "-2", "v1.5.2", "-s", f.save, "--results", f.results)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid version "latest"`)
	assert.Empty(t, f.runner.Calls())
}

func TestCompare_UnknownTargetTagListsValidTags(t *testing.T) {
	f := newCompareFixture(t, "v1.5.2", "v1.5.1")

	out, err := execute(t, f.runner, t.TempDir(), f.args("--format", "json")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp compareJSON
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidVersion, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "v1.5.2, v1.5.1")
}

func TestCompare_NotebookFailureIsFatal(t *testing.T) {
	f := newCompareFixture(t, "v1.5.3", "v1.5.2")
	f.runner.On("mamba run -p "+f.envPath+" jupyter nbconvert", testutil.Response{
		Output: "CellExecutionError",
		Err:    errors.New("exit status 1"),
	})

	out, err := execute(t, f.runner, t.TempDir(), f.args("--format", "json")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp compareJSON
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotebook, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "error executing the notebook")

	st, err := store.Open(filepath.Join(f.save, LedgerFile))
	require.NoError(t, err)
	defer st.Close()
	run, err := st.GetRun(t.Context(), resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, run.Status)
}

func TestCompare_NamesFilterSelectsNothing(t *testing.T) {
	f := newCompareFixture(t, "v1.5.3", "v1.5.2")

	_, err := execute(t, f.runner, t.TempDir(), f.args("--names", "Example_Missing")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompare_RequiredFlags(t *testing.T) {
	isolateConfig(t, "")

	_, err := execute(t, testutil.NewFakeRunner(), t.TempDir(), "compare", "-1", "v1.5.2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestCompare_ArchiveRequiresEndpoint(t *testing.T) {
	f := newCompareFixture(t, "v1.5.3", "v1.5.2")

	_, err := execute(t, f.runner, t.TempDir(), f.args("--archive")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "archive endpoint")
	assert.Empty(t, f.runner.Calls())
}

func TestCompare_BadConfigFile(t *testing.T) {
	isolateConfig(t, "")
	path := filepath.Join(t.TempDir(), "refdrift.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment_name: a/b\n"), 0o644))

	_, err := execute(t, testutil.NewFakeRunner(), t.TempDir(),
		"compare", "--config", path, "-n", "wd", "-1", "v1.5.2", "-2", "v1.5.3")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompareSummary_String(t *testing.T) {
	s := CompareSummary{RunID: "r1", Compared: 3, Different: 1, Skipped: 2}
	assert.Equal(t, "Run r1: 3 compared, 1 different, 2 without counterpart", s.String())

	s.Results = "comparison_results.txt"
	assert.Equal(t, "Run r1: 3 compared, 1 different, 2 without counterpart\nResults appended to comparison_results.txt", s.String())
}
