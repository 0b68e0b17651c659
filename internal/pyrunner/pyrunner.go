package pyrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dcSpark/shinkai-code-runner/internal/container"
	"github.com/dcSpark/shinkai-code-runner/internal/pathutil"
	"github.com/dcSpark/shinkai-code-runner/internal/probe"
	"github.com/dcSpark/shinkai-code-runner/internal/protocol"
	"github.com/dcSpark/shinkai-code-runner/internal/storage"
	"github.com/dcSpark/shinkai-code-runner/internal/supervisor"
)

// Backend selects where the Python process runs.
type Backend int

const (
	BackendAuto Backend = iota
	BackendHost
	BackendContainer
)

// Config configures one Python execution.
type Config struct {
	UvBinaryPath    string
	ContainerEngine string
	ContainerImage  string
	Backend         Backend
	// NodeLocation is rendered for host-mode execution. ContainerNodeLocation
	// is the equivalent address as seen from inside the container
	// (host.docker.internal substituted for the host) and is used
	// instead once the container backend is selected.
	NodeLocation          string
	ContainerNodeLocation string
	Timeout               time.Duration
	// MountFiles are host paths exposed read-write to the child;
	// AssetsFiles are host paths exposed read-only under assets/.
	MountFiles  []string
	AssetsFiles []string
	// ProbeObserve, when set, receives every backend probe outcome.
	ProbeObserve func(engine string, status probe.Status, latency time.Duration)
}

// Result is the raw outcome of running a Python bundle.
type Result struct {
	Value       string
	Stdout      string
	Stderr      string
	ExitCode    int
	Duration    time.Duration
	ContainerID string
}

func (c Config) resolveBackend(ctx context.Context) (Backend, error) {
	switch c.Backend {
	case BackendHost:
		return BackendHost, nil
	case BackendContainer:
		p := probe.New(c.ContainerEngine)
		p.Observe = c.ProbeObserve
		if status := p.Probe(ctx); status != probe.Running {
			return 0, fmt.Errorf("pyrunner: %w: engine %q reported %s", probe.ErrUnavailable, p.Engine, status)
		}
		return BackendContainer, nil
	default:
		p := probe.New(c.ContainerEngine)
		p.Observe = c.ProbeObserve
		if p.Available(ctx) {
			return BackendContainer, nil
		}
		return BackendHost, nil
	}
}

const (
	harnessFileName  = "__coderunner_harness__.py"
	manifestFileName = "pyproject.toml"
)

// Run synthesizes the pyproject.toml manifest, wraps the entrypoint in
// the configuration/parameter-injecting harness, and executes it under
// uv in either the host or a container.
func Run(ctx context.Context, s *storage.Storage, cfg Config, entrypoint, contextID, executionID string, configurations, parameters json.RawMessage, extraEnv map[string]string) (Result, error) {
	if err := s.InitForPython(nil); err != nil {
		return Result{}, fmt.Errorf("pyrunner: init storage: %w", err)
	}

	entrypointSource, err := os.ReadFile(s.EntrypointPath(entrypoint))
	if err != nil {
		return Result{}, fmt.Errorf("pyrunner: read entrypoint: %w", err)
	}
	inlineBody, hasInline := ExtractInline(string(entrypointSource))

	manifest, err := SynthesizeManifest(inlineBody)
	if err != nil {
		return Result{}, fmt.Errorf("pyrunner: synthesize manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.CodeDir(), manifestFileName), []byte(manifest), 0o644); err != nil {
		return Result{}, fmt.Errorf("pyrunner: write manifest: %w", err)
	}

	if hasInline {
		stripped := StripInline(string(entrypointSource))
		if err := os.WriteFile(s.EntrypointPath(entrypoint), []byte(stripped), 0o644); err != nil {
			return Result{}, fmt.Errorf("pyrunner: strip inline manifest from entrypoint: %w", err)
		}
	}

	// Both backends resolve these against their workdir: the per-run
	// storage root on the host, /app in the container.
	relManifest := path.Join("code", manifestFileName)
	relHarness := path.Join("code", harnessFileName)
	relEntrypoint := path.Join("code", filepath.ToSlash(entrypoint))

	harness, err := BuildHarness(relEntrypoint, configurations, parameters)
	if err != nil {
		return Result{}, fmt.Errorf("pyrunner: build harness: %w", err)
	}
	if err := os.WriteFile(s.EntrypointPath(harnessFileName), []byte(harness), 0o644); err != nil {
		return Result{}, fmt.Errorf("pyrunner: write harness: %w", err)
	}

	backend, err := cfg.resolveBackend(ctx)
	if err != nil {
		return Result{}, err
	}

	var spec supervisor.Spec

	switch backend {
	case BackendHost:
		uvBin := cfg.UvBinaryPath
		if uvBin == "" {
			uvBin = "uv"
		}
		env := map[string]string{
			"SHINKAI_NODE_LOCATION": cfg.NodeLocation,
			"SHINKAI_HOME":          s.HomeDir(),
			"SHINKAI_ASSETS":        pathutil.JoinTargets(cfg.AssetsFiles),
			"SHINKAI_MOUNT":         pathutil.JoinTargets(cfg.MountFiles),
			"SHINKAI_CONTEXT_ID":    contextID,
			"SHINKAI_EXECUTION_ID":  executionID,
			// The project venv lands in the shared per-context cache so
			// sibling executions reuse resolved dependencies.
			"UV_PROJECT_ENVIRONMENT": s.PythonVenvDir(),
		}
		for k, v := range extraEnv {
			env[k] = v
		}
		spec = supervisor.Spec{
			Path:    uvBin,
			Args:    []string{"run", "--project", filepath.FromSlash(relManifest), filepath.FromSlash(relHarness)},
			Dir:     s.Root,
			Env:     env,
			Timeout: cfg.Timeout,
		}
	case BackendContainer:
		mountSet, err := container.BuildMountSet(s, "python-venv", cfg.MountFiles, cfg.AssetsFiles)
		if err != nil {
			return Result{}, fmt.Errorf("pyrunner: %w", err)
		}
		env := map[string]string{
			"SHINKAI_NODE_LOCATION":  cfg.ContainerNodeLocation,
			"SHINKAI_HOME":           "/app/home",
			"SHINKAI_ASSETS":         pathutil.JoinTargets(mountSet.AssetTargets),
			"SHINKAI_MOUNT":          pathutil.JoinTargets(mountSet.MountTargets),
			"SHINKAI_CONTEXT_ID":     contextID,
			"SHINKAI_EXECUTION_ID":   executionID,
			"UV_PROJECT_ENVIRONMENT": "/app/cache/python-venv",
		}
		for k, v := range extraEnv {
			env[k] = v
		}
		command, err := containerPythonCommand(relManifest, relHarness)
		if err != nil {
			return Result{}, fmt.Errorf("pyrunner: quote container command: %w", err)
		}
		containerSpec := container.Spec{
			Engine:  cfg.ContainerEngine,
			Image:   cfg.ContainerImage,
			Mounts:  mountSet.Mounts,
			Env:     env,
			WorkDir: "/app",
			Command: command,
		}
		spec = supervisor.Spec{
			Path:    cfg.ContainerEngine,
			Args:    containerSpec.BuildArgs(),
			Timeout: cfg.Timeout,
		}
	default:
		return Result{}, fmt.Errorf("pyrunner: unknown backend %d", backend)
	}

	spec.LineSink = func(_, line string) {
		_ = s.AppendLog(line)
	}

	supResult, runErr := supervisor.Run(ctx, spec)

	result := Result{
		Stdout:   supResult.Stdout,
		Stderr:   supResult.Stderr,
		ExitCode: supResult.ExitCode,
		Duration: supResult.Duration,
	}
	if runErr != nil {
		return result, runErr
	}

	value, err := protocol.ExtractFromText(supResult.Stdout, protocol.PythonResultOpen, protocol.PythonResultClose)
	if err != nil {
		return result, fmt.Errorf("pyrunner: %w", err)
	}
	result.Value = value
	return result, nil
}

// containerPythonCommand builds the /bin/bash -c argv that runs uv
// inside the container, quoting through container.QuoteShellCommand so
// the interpolated relative paths can never break out of the shell
// invocation.
func containerPythonCommand(relManifest, relHarness string) ([]string, error) {
	shellCmd, err := container.QuoteShellCommand("uv", "run", "--project", relManifest, relHarness)
	if err != nil {
		return nil, err
	}
	return []string{"/bin/bash", "-c", shellCmd}, nil
}
