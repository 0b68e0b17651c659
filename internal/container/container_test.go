package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcSpark/shinkai-code-runner/internal/storage"
)

func TestBuildArgsIncludesHardenedFlags(t *testing.T) {
	spec := Spec{
		Engine: "docker",
		Image:  "dcspark/shinkai-code-runner:0.9.3",
		Mounts: []Mount{
			{Source: "/host/code", Target: "/app/code", ReadOnly: false},
			{Source: "/host/assets", Target: "/app/assets", ReadOnly: true},
		},
		Env:     map[string]string{"SHINKAI_CONTEXT_ID": "ctx1"},
		Limits:  Limits{MemoryMB: 512, CPUs: 1.5, PIDs: 256},
		Command: []string{"deno", "run", "index.ts"},
	}
	args := spec.BuildArgs()

	assert.Contains(t, args, "--cap-drop")
	assert.Contains(t, args, "ALL")
	assert.Contains(t, args, "no-new-privileges:true")
	assert.Contains(t, args, "512m")
	assert.Contains(t, args, "1.5")
	assert.Contains(t, args, "256")
	assert.Contains(t, args, "dcspark/shinkai-code-runner:0.9.3")
	assert.Contains(t, args, "SHINKAI_CONTEXT_ID=ctx1")

	joined := args[len(args)-3:]
	assert.Equal(t, []string{"deno", "run", "index.ts"}, joined)
}

func TestBuildMountSetLayout(t *testing.T) {
	s := storage.New(t.TempDir(), "ctx1", "exec1", "code1")
	require.NoError(t, s.Init(nil))

	set, err := BuildMountSet(s, "deno-cache", []string{"/data/shared.db"}, []string{"/srv/assets/logo.png"})
	require.NoError(t, err)

	targets := map[string]string{}
	readonly := map[string]bool{}
	for _, m := range set.Mounts {
		targets[m.Target] = m.Source
		readonly[m.Target] = m.ReadOnly
	}
	assert.Equal(t, s.CodeDir(), targets["/app/code"])
	assert.Equal(t, s.HomeDir(), targets["/app/home"])
	assert.Equal(t, s.DenoCacheDir(), targets["/app/cache/deno-cache"])
	assert.Equal(t, "/data/shared.db", targets["/data/shared.db"])
	assert.Equal(t, "/srv/assets/logo.png", targets["/app/assets/logo.png"])

	assert.Equal(t, []string{"/app/assets/logo.png"}, set.AssetTargets)
	assert.Equal(t, []string{"/data/shared.db"}, set.MountTargets)
	assert.True(t, readonly["/app/assets/logo.png"])
	assert.False(t, readonly["/app/code"])
}

func TestQuoteShellCommandEscapesSpecialChars(t *testing.T) {
	quoted, err := QuoteShellCommand("uv", "run", "it's a path/with spaces.py")
	require.NoError(t, err)
	assert.Contains(t, quoted, "uv")
	assert.Contains(t, quoted, "run")
	assert.NotEqual(t, "uv run it's a path/with spaces.py", quoted)
}
