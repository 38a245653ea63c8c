package pyrun

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), ScriptName)
	require.NoError(t, WriteScript(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o111, "script should be executable")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, part := range []string{
		"#!/usr/bin/env python3",
		"import joblib",
		"json.load(sys.stdin)",
		"artifact.predict(row)",
		"artifact.transform(values)",
	} {
		assert.True(t, strings.Contains(string(content), part), "script missing %q", part)
	}
}

func TestNew_KeepsExistingScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ScriptName)
	require.NoError(t, os.WriteFile(path, []byte("custom"), 0o755))

	r, err := New("/bin/sh", dir, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "/bin/sh", r.Python())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(content))
}

// fakeInterpreter stands in for python: it ignores its arguments and prints
// a fixed reply.
func fakeInterpreter(t *testing.T, reply string, exit int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell interpreter stub needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-python")
	script := "#!/bin/sh\ncat >/dev/null\necho '" + reply + "'\nexit " + strconv.Itoa(exit) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestCall_DecodesReply(t *testing.T) {
	python := fakeInterpreter(t, `{"label": "Y"}`, 0)
	r, err := New(python, t.TempDir(), time.Second)
	require.NoError(t, err)

	var resp struct {
		Label string `json:"label"`
	}
	require.NoError(t, r.Call(context.Background(), "model.pkl", map[string]any{"op": "predict"}, &resp))
	assert.Equal(t, "Y", resp.Label)
}

func TestCall_ScriptError(t *testing.T) {
	python := fakeInterpreter(t, `{"error": "X has 10 features, but model is expecting 11"}`, 1)
	r, err := New(python, t.TempDir(), time.Second)
	require.NoError(t, err)

	var resp map[string]any
	err = r.Call(context.Background(), "model.pkl", map[string]any{"op": "predict"}, &resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expecting 11")
}

func TestCall_GarbageOutput(t *testing.T) {
	python := fakeInterpreter(t, `not json`, 0)
	r, err := New(python, t.TempDir(), time.Second)
	require.NoError(t, err)

	var resp map[string]any
	err = r.Call(context.Background(), "model.pkl", map[string]any{}, &resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}
