// Package pathutil normalizes host paths for use as container mount
// sources and targets, where the engine expects forward slashes and a
// /c/-style prefix instead of a Windows drive letter.
package pathutil

import (
	"strings"
)

// NormalizeForEngine rewrites path into the form a container engine
// accepts in --mount source/target values: forward slashes throughout,
// and a drive letter like C: lowered into a /c prefix.
func NormalizeForEngine(path string) string {
	p := strings.ReplaceAll(path, `\`, "/")
	if len(p) >= 2 && p[1] == ':' && isDriveLetter(p[0]) {
		p = "/" + strings.ToLower(p[:1]) + p[2:]
	}
	return p
}

func isDriveLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// JoinTargets renders mount target paths as a comma-separated list,
// the shape the SHINKAI_MOUNT and SHINKAI_ASSETS env vars carry.
func JoinTargets(paths []string) string {
	return strings.Join(paths, ",")
}
