package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_KnownTag(t *testing.T) {
	srv := newTagServer(t, "v1.5.3", "v1.5.2")
	isolateConfig(t, srv.URL)

	out, err := execute(t, nil, t.TempDir(), "resolve", "1.5.2")
	require.NoError(t, err)
	assert.Equal(t, "1.5.2 (tag, ref v1.5.2)\n", out)
}

func TestResolve_CommitJSON(t *testing.T) {
	isolateConfig(t, "http://127.0.0.1:1")
	hash := "0123456789abcdef0123456789abcdef01234567"

	out, err := execute(t, nil, t.TempDir(), "resolve", hash, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   ResolveResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ResolveResult{Input: hash, Kind: "commit", Ref: hash}, resp.Data)
}

func TestResolve_UnknownTag(t *testing.T) {
	srv := newTagServer(t, "v1.5.3", "v1.5.2")
	isolateConfig(t, srv.URL)

	out, err := execute(t, nil, t.TempDir(), "resolve", "v9.9.9", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidVersion, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "[v1.5.3, v1.5.2]")
}

func TestResolve_BadShape(t *testing.T) {
	isolateConfig(t, "")

	_, err := execute(t, nil, t.TempDir(), "resolve", "main")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unrecognized version format")
}

func TestResolve_RequiresArgument(t *testing.T) {
	_, err := execute(t, nil, t.TempDir(), "resolve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
