package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runKardex executes one CLI invocation against the given database.
func runKardex(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--db", dbPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func testDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "kardex.db")
}

// decodeResponse parses the JSON envelope emitted with --format json.
func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func TestRootCommand_RejectsInvalidFormat(t *testing.T) {
	_, err := runKardex(t, testDB(t), "--format", "xml", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestInit_CreatesStore(t *testing.T) {
	db := testDB(t)
	out, err := runKardex(t, db, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Store ready")
	assert.Contains(t, out, db)
}

func TestInit_JSONEnvelope(t *testing.T) {
	out, err := runKardex(t, testDB(t), "--format", "json", "init")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, false, data["migrated"])
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "boom")))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "rejected")))
}

func TestResolveDBPath_FlagWins(t *testing.T) {
	t.Setenv(EnvDBPath, "/tmp/env.db")
	path, err := ResolveDBPath("/tmp/flag.db")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/flag.db", path)
}

func TestResolveDBPath_EnvFallback(t *testing.T) {
	t.Setenv(EnvDBPath, "/tmp/env.db")
	path, err := ResolveDBPath("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", path)
}
