package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dcSpark/shinkai-code-runner/runner"
)

// loadBundleDir reads every regular file under dir into a CodeBundle,
// relative to dir.
func loadBundleDir(dir, entrypoint string) (runner.CodeBundle, error) {
	files := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[rel] = string(content)
		return nil
	})
	if err != nil {
		return runner.CodeBundle{}, fmt.Errorf("coderunner: read bundle dir %s: %w", dir, err)
	}
	return runner.NewCodeBundle(entrypoint, files)
}

// newRunner builds a Runner and attaches the process-wide metrics
// collector and log mirror, so the run, check and definition commands
// share the same observability wiring rather than each constructing it
// ad hoc.
func newRunner(bundle runner.CodeBundle, language runner.Language, configurations json.RawMessage, execCtx *runner.ExecutionContext, opts runner.Options) (*runner.Runner, error) {
	r, err := runner.New(bundle, language, configurations, execCtx, opts)
	if err != nil {
		return nil, err
	}
	return r.WithMetrics(metricsCollector).WithLogMirror(logMirror), nil
}

func parseLanguage(s string) (runner.Language, error) {
	switch s {
	case "typescript", "ts":
		return runner.LanguageTypeScript, nil
	case "python", "py":
		return runner.LanguagePython, nil
	default:
		return "", fmt.Errorf("coderunner: unsupported language %q", s)
	}
}

func parseBackend(s string) (runner.Backend, error) {
	switch s {
	case "auto", "":
		return runner.BackendAuto, nil
	case "host":
		return runner.BackendHost, nil
	case "container":
		return runner.BackendContainer, nil
	default:
		return 0, fmt.Errorf("coderunner: unsupported backend %q", s)
	}
}

// newExecutionContext builds the per-invocation context, carrying the
// repeatable --mount/--asset flags through to the runner.
func newExecutionContext() *runner.ExecutionContext {
	return runner.NewExecutionContext(flagStorageRoot).WithMounts(flagMounts, flagAssets)
}

func buildOptions(cmd *cobra.Command) (runner.Options, error) {
	opts := runner.DefaultOptions()

	backend, err := parseBackend(flagBackend)
	if err != nil {
		return opts, err
	}
	opts.Backend = backend
	opts.ForceDenoInHost = loadedConfig.CIForceDenoInHost

	if flagImage != "" {
		opts.ContainerImage = flagImage
	}
	if flagEngine != "" {
		opts.ContainerEngine = flagEngine
	}
	if flagTimeout != "" {
		d, err := time.ParseDuration(flagTimeout)
		if err != nil {
			return opts, fmt.Errorf("coderunner: invalid --timeout %q: %w", flagTimeout, err)
		}
		opts.Timeout = d
	}
	return opts, nil
}
