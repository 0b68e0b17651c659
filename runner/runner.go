// Package runner is the public entry point: given a code bundle, a
// language, configuration and an execution context, it prepares a
// sandboxed working tree, dispatches to the TypeScript or Python
// backend, and recovers a structured result from the child's stdout.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dcSpark/shinkai-code-runner/internal/logmirror"
	"github.com/dcSpark/shinkai-code-runner/internal/metrics"
	"github.com/dcSpark/shinkai-code-runner/internal/probe"
	"github.com/dcSpark/shinkai-code-runner/internal/pyrunner"
	"github.com/dcSpark/shinkai-code-runner/internal/storage"
	"github.com/dcSpark/shinkai-code-runner/internal/tsrunner"
)

// Runner executes one code bundle against one execution context,
// repeatedly if desired (Run may be called more than once to reuse a
// warmed cache).
type Runner struct {
	bundle   CodeBundle
	language Language
	configs  json.RawMessage
	opts     Options
	execCtx  *ExecutionContext
	storage  *storage.Storage
	logger   *log.Logger
	metrics  *metrics.Collector
	mirror   *logmirror.Mirror
}

// New validates opts and prepares the on-disk working tree for bundle.
func New(bundle CodeBundle, language Language, configurations json.RawMessage, execCtx *ExecutionContext, opts Options) (*Runner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if language != LanguageTypeScript && language != LanguagePython {
		return nil, fmt.Errorf("coderunner: unsupported language %q", language)
	}

	for _, id := range []*string{&execCtx.ContextID, &execCtx.ExecutionID, &execCtx.CodeID} {
		if *id == "" {
			*id = uuid.NewString()
		}
	}

	s := storage.New(execCtx.StorageRoot, execCtx.ContextID, execCtx.ExecutionID, execCtx.CodeID)

	var pristine []string
	if opts.PristineCache {
		switch language {
		case LanguageTypeScript:
			pristine = []string{"deno-cache"}
		case LanguagePython:
			pristine = []string{"python-venv", "python-check-venv"}
		}
	}
	if err := s.Init(bundle.Files, pristine...); err != nil {
		return nil, newExecErr(ErrStorageInit, err, "preparing execution storage")
	}

	return &Runner{
		bundle:   bundle,
		language: language,
		configs:  configurations,
		opts:     opts,
		execCtx:  execCtx,
		storage:  s,
		logger:   log.Default().With("context_id", execCtx.ContextID, "execution_id", execCtx.ExecutionID, "code_id", execCtx.CodeID),
	}, nil
}

// WithMetrics attaches a Prometheus collector the runner records spawn,
// duration and probe metrics into.
func (r *Runner) WithMetrics(c *metrics.Collector) *Runner {
	r.metrics = c
	return r
}

// WithLogMirror attaches an optional Redis log mirror.
func (r *Runner) WithLogMirror(m *logmirror.Mirror) *Runner {
	r.mirror = m
	return r
}

func (r *Runner) timeout() time.Duration {
	if r.opts.Timeout > 0 {
		return r.opts.Timeout
	}
	return DefaultOptions().Timeout
}

// probeObserver feeds probe outcomes into the metrics collector, when
// one is attached.
func (r *Runner) probeObserver() func(engine string, status probe.Status, latency time.Duration) {
	if r.metrics == nil {
		return nil
	}
	return func(engine string, status probe.Status, latency time.Duration) {
		r.metrics.ProbeStatus.WithLabelValues(engine).Set(float64(status))
		r.metrics.ProbeLatencySec.Observe(latency.Seconds())
	}
}

func (r *Runner) tsConfig(timeout time.Duration) tsrunner.Config {
	return tsrunner.Config{
		DenoBinaryPath:        r.opts.DenoBinaryPath,
		ContainerEngine:       r.opts.ContainerEngine,
		ContainerImage:        r.opts.ContainerImage,
		Backend:               tsrunner.Backend(r.opts.Backend),
		ForceHost:             r.opts.ForceDenoInHost,
		NodeLocation:          r.opts.NodeLocation.String(),
		ContainerNodeLocation: r.opts.NodeLocation.ContainerString(),
		Timeout:               timeout,
		MountFiles:            r.execCtx.MountFiles,
		AssetsFiles:           r.execCtx.AssetsFiles,
		ProbeObserve:          r.probeObserver(),
	}
}

func (r *Runner) pyConfig(timeout time.Duration) pyrunner.Config {
	return pyrunner.Config{
		UvBinaryPath:          r.opts.UvBinaryPath,
		ContainerEngine:       r.opts.ContainerEngine,
		ContainerImage:        r.opts.ContainerImage,
		Backend:               pyrunner.Backend(r.opts.Backend),
		NodeLocation:          r.opts.NodeLocation.String(),
		ContainerNodeLocation: r.opts.NodeLocation.ContainerString(),
		Timeout:               timeout,
		MountFiles:            r.execCtx.MountFiles,
		AssetsFiles:           r.execCtx.AssetsFiles,
		ProbeObserve:          r.probeObserver(),
	}
}

// Run spawns the child process for the configured language/backend,
// passing parameters and extra environment variables through to it,
// and returns the structured result recovered from its stdout.
func (r *Runner) Run(ctx context.Context, envs map[string]string, parameters json.RawMessage, timeout time.Duration) (RunResult, error) {
	if timeout <= 0 {
		timeout = r.timeout()
	}

	switch r.language {
	case LanguageTypeScript:
		raw, err := tsrunner.Run(ctx, r.storage, r.tsConfig(timeout), r.bundle.Entrypoint, r.execCtx.ContextID, r.execCtx.ExecutionID, r.configs, parameters, envs)
		r.recordRun("typescript", raw.Duration, err)
		return r.toRunResult(raw.Value, raw.Stdout, raw.Stderr, raw.ExitCode, raw.Duration, raw.ContainerID, err)
	case LanguagePython:
		raw, err := pyrunner.Run(ctx, r.storage, r.pyConfig(timeout), r.bundle.Entrypoint, r.execCtx.ContextID, r.execCtx.ExecutionID, r.configs, parameters, envs)
		r.recordRun("python", raw.Duration, err)
		return r.toRunResult(raw.Value, raw.Stdout, raw.Stderr, raw.ExitCode, raw.Duration, raw.ContainerID, err)
	default:
		return RunResult{}, fmt.Errorf("coderunner: unsupported language %q", r.language)
	}
}

// Definition runs the TS backend's definition-extraction mode. It is
// not meaningful for Python bundles.
func (r *Runner) Definition(ctx context.Context) (ToolDefinition, error) {
	if r.language != LanguageTypeScript {
		return ToolDefinition{}, fmt.Errorf("coderunner: definition extraction is only supported for typescript bundles")
	}
	raw, err := tsrunner.Definition(ctx, r.storage, r.tsConfig(r.timeout()), r.bundle.Entrypoint, r.execCtx.ContextID, r.execCtx.ExecutionID)
	if err != nil {
		return ToolDefinition{}, r.classifyError(err, raw.Stderr, raw.Stdout)
	}
	return ToolDefinition{Value: json.RawMessage(raw.Value), Stdout: raw.Stdout, Stderr: raw.Stderr}, nil
}

// Check runs the Python lint/type-check pipeline. It is not meaningful
// for TypeScript bundles.
func (r *Runner) Check(ctx context.Context) ([]string, error) {
	if r.language != LanguagePython {
		return nil, fmt.Errorf("coderunner: check is only supported for python bundles")
	}
	diags, err := pyrunner.Check(ctx, r.storage, pyrunner.CheckConfig{UvBinaryPath: r.opts.UvBinaryPath}, r.bundle.Entrypoint)
	if err != nil {
		return nil, newExecErr(ErrChildFailed, err, "running check pipeline")
	}
	messages := make([]string, len(diags))
	for i, d := range diags {
		messages[i] = fmt.Sprintf("[%s] %s", d.Tool, d.Message)
	}
	return messages, nil
}

// Close best-effort removes the code/ directory for this execution.
func (r *Runner) Close() error {
	return r.storage.Cleanup()
}

func (r *Runner) recordRun(language string, duration time.Duration, err error) {
	if r.metrics == nil {
		return
	}
	kind := "ok"
	if err != nil {
		kind = "error"
	}
	r.metrics.Spawns.WithLabelValues(language, kind).Inc()
	r.metrics.ExecutionTime.WithLabelValues(language, r.backendLabel()).Observe(duration.Seconds())
}

func (r *Runner) backendLabel() string {
	switch r.opts.Backend {
	case BackendHost:
		return "host"
	case BackendContainer:
		return "container"
	default:
		return "auto"
	}
}

func (r *Runner) toRunResult(value, stdout, stderr string, exitCode int, duration time.Duration, containerID string, runErr error) (RunResult, error) {
	if r.mirror != nil {
		for _, out := range []struct{ stream, text string }{{"stdout", stdout}, {"stderr", stderr}} {
			if out.text == "" {
				continue
			}
			for _, line := range strings.Split(strings.TrimSuffix(out.text, "\n"), "\n") {
				_ = r.mirror.AppendLine(context.Background(), r.execCtx.ContextID, r.execCtx.ExecutionID, r.execCtx.CodeID, out.stream, line)
			}
		}
	}
	if err := r.storage.CloseLog(); err != nil {
		r.logger.Warn("failed to close execution log", "err", err)
	}

	if runErr != nil {
		return RunResult{Stdout: stdout, Stderr: stderr, ExitCode: exitCode, ExecutionTime: duration, ContainerID: containerID},
			r.classifyError(runErr, stderr, stdout)
	}

	result := RunResult{
		Value:         json.RawMessage(value),
		Stdout:        stdout,
		Stderr:        stderr,
		ExitCode:      exitCode,
		ExecutionTime: duration,
		ContainerID:   containerID,
	}
	if r.mirror != nil {
		_ = r.mirror.PublishResult(context.Background(), r.execCtx.ContextID, r.execCtx.ExecutionID, r.execCtx.CodeID, result)
	}
	return result, nil
}

// classifyError maps a low-level error into the ExecutionError
// taxonomy, preferring stderr as the tail surfaced to the caller and
// falling back to stdout only when stderr is empty.
func (r *Runner) classifyError(err error, stderr, stdout string) *ExecutionError {
	tail := stderr
	if tail == "" {
		tail = stdout
	}
	if len(tail) > 4096 {
		tail = tail[len(tail)-4096:]
	}

	kind := ErrChildFailed
	switch {
	case isTimeout(err):
		kind = ErrTimeout
	case isProbeErr(err):
		kind = ErrProbeUnavailable
	case isProtocolErr(err):
		kind = ErrProtocol
	case isSpawnErr(err):
		kind = ErrSpawn
	}

	return &ExecutionError{Kind: kind, Message: err.Error(), StderrTail: tail, Cause: err}
}
