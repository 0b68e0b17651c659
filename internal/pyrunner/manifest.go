// Package pyrunner executes Python code bundles through uv, handling
// PEP-723 inline script metadata, harness injection of configuration
// and parameters, and a separate lint/type-check pipeline.
package pyrunner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	toml "github.com/pelletier/go-toml/v2"
)

// baselineManifest is the default pyproject.toml synthesized for every
// run before any inline metadata is merged in.
const baselineManifest = `[project]
name = "coderunner-script"
version = "0.1.0"
requires-python = ">=3.10"
dependencies = ["jsonpickle~=4.0.0"]
`

// defaultMinPython is the floor an inline manifest's requires-python
// constraint is checked against; it can only raise the floor, never
// lower it.
const defaultMinPython = "3.10.0"

var inlineBlockPattern = regexp.MustCompile(`(?s)# /// script\n(.*?)\n# ///`)

// inlineBlockWithTrailingNewline matches the same block plus the
// newline immediately following it, so removing it doesn't leave a
// stray blank line in its place.
var inlineBlockWithTrailingNewline = regexp.MustCompile(`(?s)# /// script\n.*?\n# ///\n?`)

// ExtractInline finds a PEP-723-style "# /// script" ... "# ///" block
// in source and returns its body with the leading "# " comment prefix
// stripped from each line, ready to parse as TOML. Returns ok=false if
// no such block is present.
func ExtractInline(source string) (body string, ok bool) {
	match := inlineBlockPattern.FindStringSubmatch(source)
	if match == nil {
		return "", false
	}
	lines := strings.Split(match[1], "\n")
	stripped := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimPrefix(line, "# ")
		line = strings.TrimPrefix(line, "#")
		stripped = append(stripped, line)
	}
	return strings.Join(stripped, "\n"), true
}

// StripInline drains the PEP-723 inline metadata block out of source;
// the block is removed from the entrypoint once it has been parsed
// into the manifest.
func StripInline(source string) string {
	return inlineBlockWithTrailingNewline.ReplaceAllString(source, "")
}

// manifest mirrors the subset of pyproject.toml's [project] table this
// module cares about.
type manifest struct {
	Project struct {
		Name           string   `toml:"name"`
		Version        string   `toml:"version"`
		RequiresPython string   `toml:"requires-python"`
		Dependencies   []string `toml:"dependencies"`
	} `toml:"project"`
}

// inlineManifest mirrors a PEP-723 script metadata block, whose keys
// sit at the top level of the block rather than under a [project]
// table.
type inlineManifest struct {
	RequiresPython string   `toml:"requires-python"`
	Dependencies   []string `toml:"dependencies"`
}

// SynthesizeManifest merges an optional inline PEP-723 body into the
// baseline manifest: inline dependencies are appended (not replacing
// the jsonpickle baseline dependency), and an inline requires-python
// constraint is accepted only if its floor is >= the baseline floor.
func SynthesizeManifest(inlineBody string) (string, error) {
	var base manifest
	if err := toml.Unmarshal([]byte(baselineManifest), &base); err != nil {
		return "", fmt.Errorf("pyrunner: parse baseline manifest: %w", err)
	}

	if inlineBody == "" {
		out, err := toml.Marshal(base)
		if err != nil {
			return "", fmt.Errorf("pyrunner: marshal manifest: %w", err)
		}
		return string(out), nil
	}

	var inline inlineManifest
	if err := toml.Unmarshal([]byte(inlineBody), &inline); err != nil {
		return "", fmt.Errorf("pyrunner: parse inline manifest: %w", err)
	}

	merged := base
	merged.Project.Dependencies = append(append([]string{}, base.Project.Dependencies...), inline.Dependencies...)

	if inline.RequiresPython != "" {
		if err := validateRequiresPythonFloor(inline.RequiresPython); err != nil {
			return "", fmt.Errorf("pyrunner: inline requires-python: %w", err)
		}
		merged.Project.RequiresPython = inline.RequiresPython
	}

	out, err := toml.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("pyrunner: marshal merged manifest: %w", err)
	}
	return string(out), nil
}

// validateRequiresPythonFloor rejects an inline requires-python
// constraint whose floor sits below the baseline's 3.10 minimum;
// inline metadata may only raise the floor.
func validateRequiresPythonFloor(constraint string) error {
	trimmed := strings.TrimPrefix(strings.TrimSpace(constraint), ">=")
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return fmt.Errorf("unsupported constraint form %q, expected \">=X.Y\"", constraint)
	}
	// semver requires a full X.Y.Z; pad a bare X.Y.
	if strings.Count(trimmed, ".") == 1 {
		trimmed += ".0"
	}
	v, err := semver.NewVersion(trimmed)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", trimmed, err)
	}
	minVersion := semver.MustParse(defaultMinPython)
	if v.LessThan(minVersion) {
		return fmt.Errorf("requires-python %q is below the floor %q", constraint, defaultMinPython)
	}
	return nil
}
