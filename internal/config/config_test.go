package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.CIForceDenoInHost)
	assert.Equal(t, "docker", cfg.ContainerEngine)
	assert.Equal(t, "dcspark/shinkai-code-runner:0.9.3", cfg.ContainerImage)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadReadsForceHostEnvVerbatim(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CI_FORCE_DENO_IN_HOST", "true")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.CIForceDenoInHost)
}

func TestLoadEnvOverridesEngine(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONTAINER_ENGINE", "podman")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "podman", cfg.ContainerEngine)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	toml := "[container]\nengine = \"podman\"\nimage = \"example.com/runner:1.2.3\"\n\n[redis]\naddr = \"127.0.0.1:6379\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coderunner.toml"), []byte(toml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "podman", cfg.ContainerEngine)
	assert.Equal(t, "example.com/runner:1.2.3", cfg.ContainerImage)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
}

// chdirTemp isolates each test from any coderunner.toml lying around
// in the working directory.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}
