package runner

import (
	"fmt"
	"strings"
)

// Language selects which backend interprets a CodeBundle.
type Language string

const (
	LanguageTypeScript Language = "typescript"
	LanguagePython     Language = "python"
)

// CodeBundle is the set of source files handed to a runner. Entrypoint
// must be a key present in Files; it is the file invoked directly, the
// rest are written alongside it so relative imports resolve.
type CodeBundle struct {
	Entrypoint string
	Files      map[string]string
}

// NewCodeBundle validates the bundle invariants before returning a
// usable value: the entrypoint is present, and every path is relative,
// forward-slashed, and free of ".." segments, so no file can escape
// the code directory it is materialized into.
func NewCodeBundle(entrypoint string, files map[string]string) (CodeBundle, error) {
	if entrypoint == "" {
		return CodeBundle{}, fmt.Errorf("coderunner: entrypoint must not be empty")
	}
	if _, ok := files[entrypoint]; !ok {
		return CodeBundle{}, fmt.Errorf("coderunner: entrypoint %q not present in bundle files", entrypoint)
	}
	for path := range files {
		if err := validateBundlePath(path); err != nil {
			return CodeBundle{}, err
		}
	}
	return CodeBundle{Entrypoint: entrypoint, Files: files}, nil
}

func validateBundlePath(path string) error {
	switch {
	case path == "":
		return fmt.Errorf("coderunner: bundle contains an empty path")
	case strings.HasPrefix(path, "/"):
		return fmt.Errorf("coderunner: bundle path %q must be relative", path)
	case strings.Contains(path, `\`):
		return fmt.Errorf("coderunner: bundle path %q must use forward slashes", path)
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return fmt.Errorf("coderunner: bundle path %q must not contain \"..\" segments", path)
		}
	}
	return nil
}
