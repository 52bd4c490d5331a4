package process

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/aris/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunner_Run(t *testing.T) {
	requireSh(t)

	runner := NewRunner()
	runner.Register("greet", "sh", "-c", "echo hello")
	runner.Register("echo_env", "sh", "-c", "echo $ARIS_ARG_MSG")
	runner.Register("json_out", "sh", "-c", `echo '{"count": 2, "items": ["a", "b"]}'`)
	runner.Register("fail", "sh", "-c", "echo boom >&2; exit 3")

	ctx := context.Background()

	t.Run("Executes Registered Command", func(t *testing.T) {
		out, err := runner.Run(ctx, "greet", nil)
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	})

	t.Run("Fails For Unregistered Command", func(t *testing.T) {
		_, err := runner.Run(ctx, "hacker_script", nil)
		assert.ErrorContains(t, err, "not registered")
	})

	t.Run("Passes Arguments via Env Vars", func(t *testing.T) {
		out, err := runner.Run(ctx, "echo_env", map[string]any{"msg": "SecretMessage; rm -rf /"})
		require.NoError(t, err)
		assert.Equal(t, "SecretMessage; rm -rf /", out)
	})

	t.Run("Decodes JSON Output", func(t *testing.T) {
		out, err := runner.Run(ctx, "json_out", nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"count": float64(2), "items": []any{"a", "b"}}, out)
	})

	t.Run("Reports Stderr On Failure", func(t *testing.T) {
		_, err := runner.Run(ctx, "fail", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exit status 3")
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestRunner_Tools(t *testing.T) {
	requireSh(t)

	cfgs, err := ParseTools([]byte(`
tools:
  - name: word_count
    description: Count words in TEXT
    command: sh
    args: ["-c", "echo \"$ARIS_ARG_TEXT\" | wc -w"]
    parameters:
      text: string
  - name: pwd
    command: sh
    args: ["-c", "pwd"]
`), false)
	require.NoError(t, err)

	dir := t.TempDir()
	runner := NewRunner(WithRegistry(cfgs), WithBaseDir(dir))
	reg, err := registry.New(runner.Tools()...)
	require.NoError(t, err)
	assert.Equal(t, []string{"pwd", "word_count"}, reg.Names())

	defs := reg.Definitions()
	assert.Equal(t, "Runs sh", defs[0].Description)
	assert.Equal(t, map[string]string{"text": "string"}, defs[1].Parameters)

	out, err := reg.Execute(context.Background(), "word_count", map[string]any{"text": "one two three"})
	require.NoError(t, err)
	assert.Equal(t, "3", out)

	_, err = reg.Execute(context.Background(), "word_count", map[string]any{})
	assert.Error(t, err, "declared parameters are enforced")

	out, err = reg.Execute(context.Background(), "pwd", nil)
	require.NoError(t, err)
	resolved, _ := filepath.EvalSymlinks(dir)
	assert.Contains(t, []string{dir, resolved}, out)
}

func TestParseTools_Errors(t *testing.T) {
	_, err := ParseTools([]byte(`
tools:
  - command: ls
  - name: a
  - name: b
    command: ls
  - name: b
    command: ls
`), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool 0: missing name")
	assert.Contains(t, err.Error(), "tool a: missing command")
	assert.Contains(t, err.Error(), "tool b: defined twice")

	_, err = ParseTools([]byte(`{"tools": [`), true)
	assert.ErrorContains(t, err, "tools.json")
}

func TestLoadTools(t *testing.T) {
	dir := t.TempDir()

	tools, err := LoadTools(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, tools)

	path := filepath.Join(dir, "tools.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tools":[{"name":"ls","command":"ls","timeout":1000000000}]}`), 0o600))
	tools, err = LoadTools(path)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, time.Second, tools[0].Timeout)
}
