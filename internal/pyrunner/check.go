package pyrunner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dcSpark/shinkai-code-runner/internal/storage"
	"github.com/dcSpark/shinkai-code-runner/internal/supervisor"
)

// Diagnostic is one normalized lint or type-check finding, with the
// code directory's absolute prefix stripped from its path so messages
// read the same regardless of where the storage root happens to live.
type Diagnostic struct {
	Tool    string // "ruff" or "pyright"
	Message string
}

// CheckConfig configures the lint/type-check pipeline.
type CheckConfig struct {
	UvBinaryPath string
}

// Check runs ruff then pyright against the entrypoint in an isolated
// check venv, short-circuiting (skipping pyright) if ruff reports any
// finding. The check venv is created with a cleared environment so
// ambient PYTHON* variables on the host never leak into it.
func Check(ctx context.Context, s *storage.Storage, cfg CheckConfig, entrypoint string) ([]Diagnostic, error) {
	if err := s.InitForPython(nil); err != nil {
		return nil, fmt.Errorf("pyrunner: init storage: %w", err)
	}

	uvBin := cfg.UvBinaryPath
	if uvBin == "" {
		uvBin = "uv"
	}
	venvDir := s.PythonCheckVenvDir()

	if _, err := supervisor.Run(ctx, supervisor.Spec{
		Path:     uvBin,
		Args:     []string{"venv", venvDir},
		Dir:      s.CodeDir(),
		ClearEnv: true,
	}); err != nil {
		return nil, fmt.Errorf("pyrunner: create check venv: %w", err)
	}

	venvEnv := map[string]string{"VIRTUAL_ENV": venvDir}

	// Installing ruff/pyright is idempotent; a failure here is still
	// surfaced rather than silently tolerated.
	if _, err := supervisor.Run(ctx, supervisor.Spec{
		Path: uvBin,
		Args: []string{"tool", "install", "ruff"},
		Dir:  s.CodeDir(),
	}); err != nil {
		return nil, fmt.Errorf("pyrunner: install ruff: %w", err)
	}
	if _, err := supervisor.Run(ctx, supervisor.Spec{
		Path: uvBin,
		Args: []string{"pip", "install", "pyright"},
		Dir:  s.CodeDir(),
		Env:  venvEnv,
	}); err != nil {
		return nil, fmt.Errorf("pyrunner: install pyright: %w", err)
	}

	ruffResult, ruffErr := supervisor.Run(ctx, supervisor.Spec{
		Path: uvBin,
		Args: []string{"tool", "run", "ruff", "check", "."},
		Dir:  s.CodeDir(),
	})
	ruffLines := nonEmptyLines(ruffResult.Stdout)
	if ruffErr != nil && len(ruffLines) <= 1 {
		// ruff failed for a reason other than reporting findings on stdout.
		return nil, fmt.Errorf("pyrunner: ruff check: %w", ruffErr)
	}
	if len(ruffLines) > 1 {
		// A clean run prints a single summary line ("All checks
		// passed!"); anything longer is one or more findings, and lint
		// failures short-circuit the pipeline without type-checking.
		return toDiagnostics("ruff", ruffLines, s.CodeDir()), nil
	}

	pyrightResult, pyrightErr := supervisor.Run(ctx, supervisor.Spec{
		Path: uvBin,
		Args: []string{"run", "-m", "pyright", "--level=error", s.EntrypointPath(entrypoint)},
		Dir:  s.CodeDir(),
		Env:  venvEnv,
	})
	pyrightLines := nonEmptyLines(pyrightResult.Stdout)
	if pyrightErr != nil && len(pyrightLines) <= 1 {
		return nil, fmt.Errorf("pyrunner: pyright check: %w", pyrightErr)
	}
	if len(pyrightLines) <= 1 {
		return []Diagnostic{}, nil
	}
	return toDiagnostics("pyright", pyrightLines, s.CodeDir()), nil
}

// nonEmptyLines splits output into lines with surrounding whitespace
// trimmed and blank lines dropped, which is also the "noise" filtering
// the check pipeline applies before counting lines.
func nonEmptyLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// toDiagnostics strips the code directory's absolute prefix from each
// line so diagnostics read the same regardless of the storage root's
// absolute location.
func toDiagnostics(tool string, lines []string, codeDir string) []Diagnostic {
	prefix := codeDir + string(filepath.Separator)
	diags := make([]Diagnostic, len(lines))
	for i, line := range lines {
		diags[i] = Diagnostic{Tool: tool, Message: strings.ReplaceAll(line, prefix, "")}
	}
	return diags
}
