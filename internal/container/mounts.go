package container

import (
	"fmt"
	"path/filepath"

	"github.com/dcSpark/shinkai-code-runner/internal/pathutil"
	"github.com/dcSpark/shinkai-code-runner/internal/storage"
)

// MountSet is the full bind-mount surface of one containerized run,
// plus the target paths advertised to the child through SHINKAI_ASSETS
// and SHINKAI_MOUNT.
type MountSet struct {
	Mounts       []Mount
	AssetTargets []string
	MountTargets []string
}

// BuildMountSet renders the mount layout shared by both language
// backends: code/ and home/ land under /app by their root-relative
// names, the named shared cache subdirectory lands under /app/cache,
// every caller mount file is bound at its own (normalized) path so
// code written against host paths keeps working, and every asset file
// is bound read-only under /app/assets.
func BuildMountSet(s *storage.Storage, cacheSubdir string, mountFiles, assetsFiles []string) (MountSet, error) {
	var set MountSet
	for _, dir := range []string{s.CodeDir(), s.HomeDir()} {
		rel, err := s.RelativeToRoot(dir)
		if err != nil {
			return MountSet{}, fmt.Errorf("container: mount target for %s: %w", dir, err)
		}
		set.Mounts = append(set.Mounts, Mount{
			Source: pathutil.NormalizeForEngine(dir),
			Target: "/app/" + rel,
		})
	}
	if cacheSubdir != "" {
		set.Mounts = append(set.Mounts, Mount{
			Source: pathutil.NormalizeForEngine(filepath.Join(s.CacheDir(), cacheSubdir)),
			Target: "/app/cache/" + cacheSubdir,
		})
	}

	for _, file := range mountFiles {
		target := pathutil.NormalizeForEngine(file)
		set.Mounts = append(set.Mounts, Mount{Source: target, Target: target})
		set.MountTargets = append(set.MountTargets, target)
	}

	for _, file := range assetsFiles {
		target := "/app/assets/" + filepath.Base(file)
		set.Mounts = append(set.Mounts, Mount{
			Source:   pathutil.NormalizeForEngine(file),
			Target:   target,
			ReadOnly: true,
		})
		set.AssetTargets = append(set.AssetTargets, target)
	}
	return set, nil
}
