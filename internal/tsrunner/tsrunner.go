// Package tsrunner executes TypeScript code bundles through Deno,
// either as a direct host subprocess with a fixed permission allowlist
// or inside a container where isolation comes from the engine instead
// of from Deno's own permission flags.
package tsrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dcSpark/shinkai-code-runner/internal/container"
	"github.com/dcSpark/shinkai-code-runner/internal/pathutil"
	"github.com/dcSpark/shinkai-code-runner/internal/probe"
	"github.com/dcSpark/shinkai-code-runner/internal/protocol"
	"github.com/dcSpark/shinkai-code-runner/internal/storage"
	"github.com/dcSpark/shinkai-code-runner/internal/supervisor"
)

// Backend selects where the Deno process runs.
type Backend int

const (
	BackendAuto Backend = iota
	BackendHost
	BackendContainer
)

// Config configures one TS execution.
type Config struct {
	DenoBinaryPath  string
	ContainerEngine string
	ContainerImage  string
	Backend         Backend
	// ForceHost is the per-runner override of the process-wide
	// CI_FORCE_DENO_IN_HOST env var; the env var is only consulted
	// when this is false.
	ForceHost bool
	// NodeLocation is rendered for host-mode execution, e.g.
	// "http://127.0.0.1:9550". ContainerNodeLocation is the equivalent
	// address as seen from inside the container (host.docker.internal
	// substituted for the host) and is used instead once the container
	// backend is selected.
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

// Result is the raw outcome of running (or defining) a TS bundle,
// before the caller maps it onto a public result type.
type Result struct {
	Value       string
	Stdout      string
	Stderr      string
	ExitCode    int
	Duration    time.Duration
	ContainerID string
}

// hostPermissions is the fixed allowlist granted to Deno when running
// directly on the host. Isolation in host mode comes entirely from
// this list; container mode grants --allow-all instead because the
// container boundary is the isolation mechanism there.
func hostPermissions(home string, mountFiles []string) []string {
	tmp := os.TempDir()
	readTargets := []string{".", tmp,
		"/Applications/Google Chrome.app", "/Applications/Firefox.app",
		"/usr/bin/google-chrome", "/usr/bin/chromium-browser", "/usr/bin/firefox",
	}
	writeTargets := []string{home, tmp}
	readTargets = append(readTargets, mountFiles...)
	writeTargets = append(writeTargets, mountFiles...)
	return []string{
		"--allow-env",
		"--allow-run",
		"--allow-net",
		"--allow-sys",
		"--allow-ffi",
		"--allow-import",
		"--allow-read=" + strings.Join(readTargets, ","),
		"--allow-write=" + strings.Join(writeTargets, ","),
	}
}

func (c Config) resolveBackend(ctx context.Context) (Backend, error) {
	if c.ForceHost {
		return BackendHost, nil
	}
	if forced := os.Getenv("CI_FORCE_DENO_IN_HOST"); strings.EqualFold(forced, "true") {
		return BackendHost, nil
	}
	switch c.Backend {
	case BackendHost:
		return BackendHost, nil
	case BackendContainer:
		p := probe.New(c.ContainerEngine)
		p.Observe = c.ProbeObserve
		if status := p.Probe(ctx); status != probe.Running {
			return 0, fmt.Errorf("tsrunner: %w: engine %q reported %s", probe.ErrUnavailable, p.Engine, status)
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

// Run wraps the entrypoint with the run-mode harness, executes it and
// recovers the value framed by the tool-result sentinels.
func Run(ctx context.Context, s *storage.Storage, cfg Config, entrypoint, contextID, executionID string, configurations, parameters json.RawMessage, extraEnv map[string]string) (Result, error) {
	source, err := os.ReadFile(s.EntrypointPath(entrypoint))
	if err != nil {
		return Result{}, fmt.Errorf("tsrunner: read entrypoint: %w", err)
	}
	harness, err := BuildRunHarness(string(source), configurations, parameters)
	if err != nil {
		return Result{}, err
	}
	return execute(ctx, s, cfg, entrypoint, harness, contextID, executionID, extraEnv, protocol.ToolResultOpen, protocol.ToolResultClose)
}

// Definition wraps the entrypoint with the definition-extraction
// epilogue and recovers the value framed by the tool-definition
// sentinels. This mode always runs with an empty passthrough
// environment.
func Definition(ctx context.Context, s *storage.Storage, cfg Config, entrypoint, contextID, executionID string) (Result, error) {
	source, err := os.ReadFile(s.EntrypointPath(entrypoint))
	if err != nil {
		return Result{}, fmt.Errorf("tsrunner: read entrypoint: %w", err)
	}
	harness := BuildDefinitionHarness(string(source))
	return execute(ctx, s, cfg, entrypoint, harness, contextID, executionID, nil, protocol.ToolDefinitionOpen, protocol.ToolDefinitionClose)
}

func execute(ctx context.Context, s *storage.Storage, cfg Config, entrypoint, harness, contextID, executionID string, extraEnv map[string]string, openTag, closeTag string) (Result, error) {
	// The harness lands in the entrypoint's own directory so relative
	// imports in the copied source resolve as they would from it.
	harnessRel := path.Join(path.Dir(filepath.ToSlash(entrypoint)), harnessFileName)
	if err := os.WriteFile(s.EntrypointPath(harnessRel), []byte(harness), 0o644); err != nil {
		return Result{}, fmt.Errorf("tsrunner: write harness: %w", err)
	}

	backend, err := cfg.resolveBackend(ctx)
	if err != nil {
		return Result{}, err
	}

	relHarness := path.Join("code", harnessRel)
	var spec supervisor.Spec

	switch backend {
	case BackendHost:
		denoBin := cfg.DenoBinaryPath
		if denoBin == "" {
			denoBin = "deno"
		}
		args := append([]string{"run", "--ext", "ts"}, hostPermissions(s.HomeDir(), cfg.MountFiles)...)
		args = append(args, filepath.FromSlash(relHarness))
		env := map[string]string{
			"SHINKAI_NODE_LOCATION": cfg.NodeLocation,
			"SHINKAI_HOME":          s.HomeDir(),
			"SHINKAI_ASSETS":        pathutil.JoinTargets(cfg.AssetsFiles),
			"SHINKAI_MOUNT":         pathutil.JoinTargets(cfg.MountFiles),
			"SHINKAI_CONTEXT_ID":    contextID,
			"SHINKAI_EXECUTION_ID":  executionID,
			"DENO_DIR":              s.DenoCacheDir(),
		}
		for k, v := range extraEnv {
			env[k] = v
		}
		spec = supervisor.Spec{
			Path:    denoBin,
			Args:    args,
			Dir:     s.Root,
			Env:     env,
			Timeout: cfg.Timeout,
		}
	case BackendContainer:
		mountSet, err := container.BuildMountSet(s, "deno-cache", cfg.MountFiles, cfg.AssetsFiles)
		if err != nil {
			return Result{}, fmt.Errorf("tsrunner: %w", err)
		}
		env := map[string]string{
			"SHINKAI_NODE_LOCATION": cfg.ContainerNodeLocation,
			"SHINKAI_HOME":          "/app/home",
			"SHINKAI_ASSETS":        pathutil.JoinTargets(mountSet.AssetTargets),
			"SHINKAI_MOUNT":         pathutil.JoinTargets(mountSet.MountTargets),
			"SHINKAI_CONTEXT_ID":    contextID,
			"SHINKAI_EXECUTION_ID":  executionID,
			// Relative to the fixed /app workdir.
			"DENO_DIR": "cache/deno-cache",
		}
		for k, v := range extraEnv {
			env[k] = v
		}
		containerSpec := container.Spec{
			Engine:  cfg.ContainerEngine,
			Image:   cfg.ContainerImage,
			Mounts:  mountSet.Mounts,
			Env:     env,
			WorkDir: "/app",
			// Isolation comes from the container boundary itself, so
			// the child is granted every Deno permission rather than
			// the host allowlist.
			Command: []string{"deno", "run", "--ext", "ts", "--allow-all", relHarness},
		}
		spec = supervisor.Spec{
			Path:    cfg.ContainerEngine,
			Args:    containerSpec.BuildArgs(),
			Timeout: cfg.Timeout,
		}
	default:
		return Result{}, fmt.Errorf("tsrunner: unknown backend %d", backend)
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

	value, err := protocol.ExtractFromText(supResult.Stdout, openTag, closeTag)
	if err != nil {
		return result, fmt.Errorf("tsrunner: %w", err)
	}
	result.Value = value
	return result, nil
}
