// Package storage manages the on-disk directory tree backing one
// execution: code, home, logs and assets keyed by context/execution/
// code id under a shared storage root, plus the per-context cache
// directory shared by sibling executions of the same context.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Storage is the filesystem layout for a single invocation:
//
//	<storage_root>/<context_id>/cache/         shared across sibling executions
//	  deno-cache/  python-venv/  python-check-venv/
//	<storage_root>/<context_id>/<execution_id>/<code_id>/
//	  code/      entrypoint and sibling source files
//	  home/      child process HOME
//	  logs/      captured stdout/stderr
//	  assets/    read-only input assets exposed to the child
type Storage struct {
	Root       string // per-run root: <storage_root>/<context_id>/<execution_id>/<code_id>
	ContextDir string // <storage_root>/<context_id>

	logMu   sync.Mutex
	logFile *os.File
}

// New returns a Storage for one (contextID, executionID, codeID) run.
func New(storageRoot, contextID, executionID, codeID string) *Storage {
	contextDir := filepath.Join(storageRoot, contextID)
	return &Storage{
		Root:       filepath.Join(contextDir, executionID, codeID),
		ContextDir: contextDir,
	}
}

func (s *Storage) CodeDir() string   { return filepath.Join(s.Root, "code") }
func (s *Storage) HomeDir() string   { return filepath.Join(s.Root, "home") }
func (s *Storage) LogsDir() string   { return filepath.Join(s.Root, "logs") }
func (s *Storage) AssetsDir() string { return filepath.Join(s.Root, "assets") }
func (s *Storage) CacheDir() string  { return filepath.Join(s.ContextDir, "cache") }

func (s *Storage) DenoCacheDir() string  { return filepath.Join(s.CacheDir(), "deno-cache") }
func (s *Storage) PythonVenvDir() string { return filepath.Join(s.CacheDir(), "python-venv") }
func (s *Storage) PythonCheckVenvDir() string {
	return filepath.Join(s.CacheDir(), "python-check-venv")
}

// EntrypointPath is the absolute path of a file within code/.
func (s *Storage) EntrypointPath(name string) string {
	return filepath.Join(s.CodeDir(), name)
}

const dirPerm = 0o755

// Init creates the base directory tree and writes the bundle's files
// under code/. pristineCacheDirs names which cache subdirectories (by
// basename, e.g. "deno-cache") must be wiped and recreated empty; any
// cache subdirectory not named is left untouched, so a Python run's
// pristine reset never clobbers the TS Deno cache and vice versa.
// Calling Init again with the same files is a no-op beyond rewriting
// code/ to identical content.
func (s *Storage) Init(files map[string]string, pristineCacheDirs ...string) error {
	for _, dir := range []string{s.CodeDir(), s.HomeDir(), s.CacheDir(), s.LogsDir(), s.AssetsDir()} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("storage: create %s: %w", dir, err)
		}
	}
	for _, name := range pristineCacheDirs {
		dir := filepath.Join(s.CacheDir(), name)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("storage: reset cache %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("storage: recreate cache %s: %w", dir, err)
		}
	}
	for relPath, content := range files {
		dest := filepath.Join(s.CodeDir(), relPath)
		if err := os.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
			return fmt.Errorf("storage: create parent for %s: %w", dest, err)
		}
		if err := os.WriteFile(dest, []byte(content), 0o644); err != nil {
			return fmt.Errorf("storage: write %s: %w", dest, err)
		}
	}
	return nil
}

// InitForPython is Init plus creation of the Python venv cache
// directories used by uv and the check pipeline.
func (s *Storage) InitForPython(files map[string]string, pristineCacheDirs ...string) error {
	if err := s.Init(files, pristineCacheDirs...); err != nil {
		return err
	}
	for _, dir := range []string{s.PythonVenvDir(), s.PythonCheckVenvDir()} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("storage: create %s: %w", dir, err)
		}
	}
	return nil
}

// RelativeToRoot strips the per-run root prefix from abs, returning a
// forward-slashed relative path suitable as a /app-relative container
// target. Fails when abs does not live under the root.
func (s *Storage) RelativeToRoot(abs string) (string, error) {
	rel, err := filepath.Rel(s.Root, abs)
	if err != nil {
		return "", fmt.Errorf("storage: %s is not relative to %s: %w", abs, s.Root, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: %s is outside the storage root %s", abs, s.Root)
	}
	return filepath.ToSlash(rel), nil
}

// AppendLog appends one captured output line to the run's live log
// file (logs/output_<timestamp>.log, opened lazily on the first line).
// Writes are serialized per storage instance.
func (s *Storage) AppendLog(line string) error {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	if s.logFile == nil {
		if err := os.MkdirAll(s.LogsDir(), dirPerm); err != nil {
			return fmt.Errorf("storage: create logs dir: %w", err)
		}
		name := fmt.Sprintf("output_%s.log", time.Now().Format("20060102_150405"))
		f, err := os.OpenFile(filepath.Join(s.LogsDir(), name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("storage: open log file: %w", err)
		}
		s.logFile = f
	}
	if _, err := s.logFile.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("storage: append log line: %w", err)
	}
	return nil
}

// CloseLog flushes and closes the live log file, if one was opened.
func (s *Storage) CloseLog() error {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	if s.logFile == nil {
		return nil
	}
	err := s.logFile.Close()
	s.logFile = nil
	return err
}

// Cleanup best-effort removes the code/ directory, leaving caches and
// logs intact for inspection or reuse across runs sharing the context.
func (s *Storage) Cleanup() error {
	if err := s.CloseLog(); err != nil {
		return err
	}
	return os.RemoveAll(s.CodeDir())
}
