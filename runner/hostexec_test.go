package runner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStub materializes a fake interpreter binary so host-mode runs
// can be driven end-to-end through the supervisor and the extraction
// protocol without a real Deno or uv on the machine.
func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub-interpreter")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func newHostTSRunner(t *testing.T, stubScript string) *Runner {
	t.Helper()
	bundle, err := NewCodeBundle("main.ts", map[string]string{
		"main.ts": "function run(configurations: any, parameters: any) {\n  return { message: \"hello\" };\n}",
	})
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Backend = BackendHost
	opts.DenoBinaryPath = writeStub(t, stubScript)

	r, err := New(bundle, LanguageTypeScript, json.RawMessage(`{}`), NewExecutionContext(t.TempDir()), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRunHostReturnsFramedValue(t *testing.T) {
	r := newHostTSRunner(t, `printf '%s\n' 'noise before' '<shinkai-tool-result>' '{"message":"hello"}' '</shinkai-tool-result>' 'noise after'`)

	result, err := r.Run(context.Background(), nil, json.RawMessage(`{}`), time.Minute)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"hello"}`, string(result.Value))
	assert.Equal(t, 0, result.ExitCode)
}

func TestRunHostPassesEnvThrough(t *testing.T) {
	r := newHostTSRunner(t, `printf '%s\n' '<shinkai-tool-result>' "\"$HELLO_WORLD\"" '</shinkai-tool-result>'`)

	result, err := r.Run(context.Background(), map[string]string{"HELLO_WORLD": "hello world!"}, json.RawMessage(`{}`), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, `"hello world!"`, string(result.Value))
}

func TestRunHostSetsExecutionIdentityEnv(t *testing.T) {
	r := newHostTSRunner(t, `printf '%s\n' '<shinkai-tool-result>' "\"$SHINKAI_CONTEXT_ID/$SHINKAI_EXECUTION_ID\"" '</shinkai-tool-result>'`)

	result, err := r.Run(context.Background(), nil, json.RawMessage(`{}`), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, `"`+r.execCtx.ContextID+"/"+r.execCtx.ExecutionID+`"`, string(result.Value))
}

func TestRunHostMissingSentinelsIsProtocolError(t *testing.T) {
	r := newHostTSRunner(t, `printf '%s\n' '{"message":"hello world"}'`)

	_, err := r.Run(context.Background(), nil, json.RawMessage(`{}`), time.Minute)
	require.Error(t, err)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ErrProtocol, execErr.Kind)
}

func TestRunHostMalformedJSONIsProtocolError(t *testing.T) {
	r := newHostTSRunner(t, `printf '%s\n' '<shinkai-tool-result>' 'not json at all' '</shinkai-tool-result>'`)

	_, err := r.Run(context.Background(), nil, json.RawMessage(`{}`), time.Minute)
	require.Error(t, err)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ErrProtocol, execErr.Kind)
}

func TestRunHostNonZeroExitCarriesStderrTail(t *testing.T) {
	r := newHostTSRunner(t, `echo 'permission denied: write access to /test.txt' 1>&2; exit 1`)

	_, err := r.Run(context.Background(), nil, json.RawMessage(`{}`), time.Minute)
	require.Error(t, err)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ErrChildFailed, execErr.Kind)
	assert.Contains(t, execErr.StderrTail, "permission denied")
}

func TestRunHostFallsBackToStdoutWhenStderrEmpty(t *testing.T) {
	r := newHostTSRunner(t, `echo 'failure detail went to stdout'; exit 3`)

	_, err := r.Run(context.Background(), nil, json.RawMessage(`{}`), time.Minute)
	require.Error(t, err)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ErrChildFailed, execErr.Kind)
	assert.Contains(t, execErr.StderrTail, "failure detail went to stdout")
}

func TestRunHostTimeoutKillsChildPromptly(t *testing.T) {
	r := newHostTSRunner(t, `sleep 10`)

	start := time.Now()
	_, err := r.Run(context.Background(), nil, json.RawMessage(`{}`), time.Second)
	elapsed := time.Since(start)

	require.Error(t, err)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ErrTimeout, execErr.Kind)
	assert.Less(t, elapsed, 3*time.Second)
}

func TestRunHostSpawnFailureIsClassified(t *testing.T) {
	bundle, err := NewCodeBundle("main.ts", map[string]string{"main.ts": "function run(c: any, p: any) {}"})
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.Backend = BackendHost
	opts.DenoBinaryPath = "/no/such/deno/binary"
	r, err := New(bundle, LanguageTypeScript, json.RawMessage(`{}`), NewExecutionContext(t.TempDir()), opts)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Run(context.Background(), nil, json.RawMessage(`{}`), time.Minute)
	require.Error(t, err)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ErrSpawn, execErr.Kind)
}

func TestRunForcedContainerWithoutEngineIsProbeUnavailable(t *testing.T) {
	bundle, err := NewCodeBundle("main.ts", map[string]string{"main.ts": "function run(c: any, p: any) {}"})
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.Backend = BackendContainer
	opts.ContainerEngine = "container-engine-that-does-not-exist"
	r, err := New(bundle, LanguageTypeScript, json.RawMessage(`{}`), NewExecutionContext(t.TempDir()), opts)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Run(context.Background(), nil, json.RawMessage(`{}`), time.Minute)
	require.Error(t, err)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ErrProbeUnavailable, execErr.Kind)
}

func TestRunHostPythonStubEndToEnd(t *testing.T) {
	bundle, err := NewCodeBundle("main.py", map[string]string{
		"main.py": "def run(configurations, parameters):\n    return {\"foo\": parameters[\"x\"] + 1}\n",
	})
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Backend = BackendHost
	opts.UvBinaryPath = writeStub(t, `printf '%s\n' '<shinkai-code-result>' '{"foo": 3}' '</shinkai-code-result>'`)

	r, err := New(bundle, LanguagePython, json.RawMessage(`{}`), NewExecutionContext(t.TempDir()), opts)
	require.NoError(t, err)
	defer r.Close()

	result, err := r.Run(context.Background(), nil, json.RawMessage(`{"x":2}`), time.Minute)
	require.NoError(t, err)
	assert.JSONEq(t, `{"foo": 3}`, string(result.Value))
}

func TestDefinitionHostReturnsFramedDefinition(t *testing.T) {
	r := newHostTSRunner(t, `printf '%s\n' '<shinkai-tool-definition>' '{"id":"echo","name":"Echo"}' '</shinkai-tool-definition>'`)

	def, err := r.Definition(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"echo","name":"Echo"}`, string(def.Value))
}

func TestRunWritesLiveLogFile(t *testing.T) {
	r := newHostTSRunner(t, `printf '%s\n' 'a log line' '<shinkai-tool-result>' 'null' '</shinkai-tool-result>'`)

	_, err := r.Run(context.Background(), nil, json.RawMessage(`{}`), time.Minute)
	require.NoError(t, err)

	entries, err := os.ReadDir(r.storage.LogsDir())
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	content, err := os.ReadFile(filepath.Join(r.storage.LogsDir(), entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(content), "a log line")
}

func TestConcurrentRunsDoNotObserveEachOthersCode(t *testing.T) {
	storageRoot := t.TempDir()
	mk := func(codeID, body string) *Runner {
		bundle, err := NewCodeBundle("main.ts", map[string]string{"main.ts": body})
		require.NoError(t, err)
		opts := DefaultOptions()
		opts.Backend = BackendHost
		opts.DenoBinaryPath = writeStub(t, `printf '%s\n' '<shinkai-tool-result>' 'null' '</shinkai-tool-result>'`)
		execCtx := NewExecutionContext(storageRoot).WithIDs("shared-context", "", codeID)
		r, err := New(bundle, LanguageTypeScript, json.RawMessage(`{}`), execCtx, opts)
		require.NoError(t, err)
		return r
	}

	r1 := mk("code-one", "function run(c: any, p: any) { return 1; }")
	r2 := mk("code-two", "function run(c: any, p: any) { return 2; }")
	defer r1.Close()
	defer r2.Close()

	assert.NotEqual(t, r1.storage.CodeDir(), r2.storage.CodeDir())
	assert.Equal(t, r1.storage.CacheDir(), r2.storage.CacheDir())

	oneContent, err := os.ReadFile(r1.storage.EntrypointPath("main.ts"))
	require.NoError(t, err)
	twoContent, err := os.ReadFile(r2.storage.EntrypointPath("main.ts"))
	require.NoError(t, err)
	assert.NotEqual(t, string(oneContent), string(twoContent))

	errs := make(chan error, 2)
	for _, r := range []*Runner{r1, r2} {
		go func(r *Runner) {
			_, err := r.Run(context.Background(), nil, json.RawMessage(`{}`), time.Minute)
			errs <- err
		}(r)
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
}

func TestExecutionErrorSupportsErrorsAs(t *testing.T) {
	inner := errors.New("boom")
	execErr := newExecErr(ErrStorageInit, inner, "preparing storage")
	assert.ErrorIs(t, execErr, inner)
	assert.Contains(t, execErr.Error(), "storage_init")
}
