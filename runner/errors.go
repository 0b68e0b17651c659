package runner

import (
	"errors"
	"fmt"

	"github.com/dcSpark/shinkai-code-runner/internal/probe"
	"github.com/dcSpark/shinkai-code-runner/internal/protocol"
	"github.com/dcSpark/shinkai-code-runner/internal/supervisor"
)

// ErrorKind classifies why an execution failed so callers can branch on
// cause instead of parsing a message string.
type ErrorKind int

const (
	// ErrStorageInit covers failures preparing the execution directory tree.
	ErrStorageInit ErrorKind = iota
	// ErrManifestSynthesis covers failures merging an inline manifest into the baseline one.
	ErrManifestSynthesis
	// ErrSpawn covers failures starting the child process or backend.
	ErrSpawn
	// ErrTimeout means the child was killed after exceeding its wall-clock budget.
	ErrTimeout
	// ErrChildFailed means the child exited with a non-zero status.
	ErrChildFailed
	// ErrProtocol means the child's stdout did not contain a well-formed result.
	ErrProtocol
	// ErrProbeUnavailable means the requested backend isn't installed or running.
	ErrProbeUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case ErrStorageInit:
		return "storage_init"
	case ErrManifestSynthesis:
		return "manifest_synthesis"
	case ErrSpawn:
		return "spawn"
	case ErrTimeout:
		return "timeout"
	case ErrChildFailed:
		return "child_failed"
	case ErrProtocol:
		return "protocol"
	case ErrProbeUnavailable:
		return "probe_unavailable"
	default:
		return "unknown"
	}
}

// ExecutionError is the single error type surfaced by this package. It
// carries enough detail for a caller to decide retry/backend-fallback
// behavior without parsing text.
type ExecutionError struct {
	Kind       ErrorKind
	Message    string
	StderrTail string
	Cause      error
}

func (e *ExecutionError) Error() string {
	if e.StderrTail != "" {
		return fmt.Sprintf("%s: %s (stderr: %s)", e.Kind, e.Message, e.StderrTail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

func newExecErr(kind ErrorKind, cause error, format string, args ...any) *ExecutionError {
	return &ExecutionError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, supervisor.ErrTimedOut)
}

func isProtocolErr(err error) bool {
	var sentinelErr *protocol.ErrNoSentinel
	if errors.As(err, &sentinelErr) {
		return true
	}
	var jsonErr *protocol.ErrMalformedJSON
	return errors.As(err, &jsonErr)
}

func isSpawnErr(err error) bool {
	return errors.Is(err, supervisor.ErrSpawn)
}

func isProbeErr(err error) bool {
	return errors.Is(err, probe.ErrUnavailable)
}
