// Package protocol recovers a well-formed JSON result from a child
// process's captured stdout, framed between a pair of sentinel lines.
// Both language backends and TS definition-extraction share this one
// scan instead of each re-implementing it.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrNoSentinel is returned when the opening or closing sentinel is
// never found in the given lines.
type ErrNoSentinel struct {
	Open, Close string
}

func (e *ErrNoSentinel) Error() string {
	return fmt.Sprintf("protocol: sentinel pair %q/%q not found in output", e.Open, e.Close)
}

// ErrMalformedJSON is returned when a sentinel pair was found but the
// framed payload does not parse as JSON. Raw carries the unparsed text
// so the caller can still surface it for diagnosis.
type ErrMalformedJSON struct {
	Raw   string
	Cause error
}

func (e *ErrMalformedJSON) Error() string {
	return fmt.Sprintf("protocol: framed payload is not valid JSON: %v", e.Cause)
}

func (e *ErrMalformedJSON) Unwrap() error {
	return e.Cause
}

// Extract scans lines for the first line equal to open, then collects
// every subsequent line up to (not including) the first line equal to
// close, and joins them with newlines. It mirrors the skip-while /
// skip(1) / take-while scan both language runners perform over child
// stdout.
func Extract(lines []string, open, close string) (string, error) {
	i := 0
	for i < len(lines) && lines[i] != open {
		i++
	}
	if i == len(lines) {
		return "", &ErrNoSentinel{Open: open, Close: close}
	}
	i++ // skip the opening sentinel itself

	var collected []string
	found := false
	for ; i < len(lines); i++ {
		if lines[i] == close {
			found = true
			break
		}
		collected = append(collected, lines[i])
	}
	if !found {
		return "", &ErrNoSentinel{Open: open, Close: close}
	}
	raw := strings.Join(collected, "\n")
	if !json.Valid([]byte(raw)) {
		return "", &ErrMalformedJSON{Raw: raw, Cause: fmt.Errorf("invalid JSON")}
	}
	return raw, nil
}

// ExtractFromText splits text on newlines before extracting, for
// callers holding raw captured stdout rather than a pre-split slice.
func ExtractFromText(text, open, close string) (string, error) {
	return Extract(strings.Split(text, "\n"), open, close)
}

// Sentinel pairs used by each backend. Preserved verbatim: these are
// wire-level markers the child process prints literally.
const (
	PythonResultOpen      = "<shinkai-code-result>"
	PythonResultClose     = "</shinkai-code-result>"
	ToolResultOpen        = "<shinkai-tool-result>"
	ToolResultClose       = "</shinkai-tool-result>"
	ToolDefinitionOpen    = "<shinkai-tool-definition>"
	ToolDefinitionClose   = "</shinkai-tool-definition>"
)
