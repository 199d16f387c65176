package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refdrift/internal/dataset"
)

func TestDiff_Same(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.nc")
	b := filepath.Join(dir, "b.nc")
	writeTrack(t, a, "sat")
	writeTrack(t, b, "sat")

	out, err := execute(t, nil, dir, "diff", a, b)
	require.NoError(t, err)
	assert.Equal(t, "Comparison result for "+a+" and "+b+": Same\n", out)
}

func TestDiff_DifferentExitsZero(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.nc")
	b := filepath.Join(dir, "b.nc")
	writeTrack(t, a, "sat")
	writeTrack(t, b, "radar")

	out, err := execute(t, nil, dir, "diff", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, ": Different\n")
	assert.Contains(t, out, "Global attribute 'source' differs.\n")
}

func TestDiff_JSON(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.nc")
	b := filepath.Join(dir, "b.nc")
	writeTrack(t, a, "sat")
	writeTrack(t, b, "radar")

	out, err := execute(t, nil, dir, "diff", a, b, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   DiffResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "Different", resp.Data.Result)
	assert.Equal(t, []dataset.Finding{{Kind: dataset.GlobalAttributeMismatch, Name: "source"}}, resp.Data.Report.Findings)

	digest, err := resp.Data.Report.Digest()
	require.NoError(t, err)
	assert.Equal(t, digest, resp.Data.Digest)
}

func TestDiff_MissingFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.nc")
	writeTrack(t, a, "sat")

	_, err := execute(t, nil, dir, "diff", a, filepath.Join(dir, "missing.nc"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "file not found")
}

func TestDiff_UnreadableDataset(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.nc")
	b := filepath.Join(dir, "b.nc")
	writeTrack(t, a, "sat")
	require.NoError(t, os.WriteFile(b, []byte("not netcdf"), 0o644))

	_, err := execute(t, nil, dir, "diff", a, b)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
