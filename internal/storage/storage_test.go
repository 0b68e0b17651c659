package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCreatesTreeAndWritesFiles(t *testing.T) {
	root := t.TempDir()
	s := New(root, "ctx1", "exec1", "code1")

	err := s.Init(map[string]string{
		"index.ts":      "console.log('hi')",
		"lib/helper.ts": "export const x = 1",
	}, "deno-cache")
	require.NoError(t, err)

	for _, dir := range []string{s.CodeDir(), s.HomeDir(), s.CacheDir(), s.LogsDir(), s.AssetsDir(), s.DenoCacheDir()} {
		assert.DirExists(t, dir)
	}

	content, err := os.ReadFile(filepath.Join(s.CodeDir(), "index.ts"))
	require.NoError(t, err)
	assert.Equal(t, "console.log('hi')", string(content))

	content, err = os.ReadFile(filepath.Join(s.CodeDir(), "lib", "helper.ts"))
	require.NoError(t, err)
	assert.Equal(t, "export const x = 1", string(content))
}

func TestInitIdempotent(t *testing.T) {
	root := t.TempDir()
	s := New(root, "ctx1", "exec1", "code1")
	files := map[string]string{"main.py": "def run(c, p):\n    return 1\n"}

	require.NoError(t, s.Init(files))
	require.NoError(t, s.Init(files))

	content, err := os.ReadFile(filepath.Join(s.CodeDir(), "main.py"))
	require.NoError(t, err)
	assert.Equal(t, files["main.py"], string(content))
}

func TestCacheIsSharedAcrossSiblingExecutions(t *testing.T) {
	root := t.TempDir()
	s1 := New(root, "ctx1", "exec1", "code1")
	s2 := New(root, "ctx1", "exec2", "code2")

	require.NoError(t, s1.Init(nil, "deno-cache"))
	require.NoError(t, s2.Init(nil))

	assert.Equal(t, s1.CacheDir(), s2.CacheDir())
	assert.NotEqual(t, s1.CodeDir(), s2.CodeDir())
}

func TestInitPristineCacheOnlyTouchesNamedDir(t *testing.T) {
	root := t.TempDir()
	s := New(root, "ctx1", "exec1", "code1")
	require.NoError(t, s.Init(nil))

	require.NoError(t, os.MkdirAll(s.PythonVenvDir(), dirPerm))
	marker := filepath.Join(s.PythonVenvDir(), "marker")
	require.NoError(t, os.WriteFile(marker, []byte("keep"), 0o644))

	require.NoError(t, s.Init(nil, "deno-cache"))

	assert.FileExists(t, marker)
	assert.DirExists(t, s.DenoCacheDir())
}

func TestInitForPythonCreatesVenvDirs(t *testing.T) {
	root := t.TempDir()
	s := New(root, "ctx1", "exec1", "code1")
	require.NoError(t, s.InitForPython(nil))

	assert.DirExists(t, s.PythonVenvDir())
	assert.DirExists(t, s.PythonCheckVenvDir())
}

func TestRelativeToRoot(t *testing.T) {
	root := t.TempDir()
	s := New(root, "ctx1", "exec1", "code1")

	rel, err := s.RelativeToRoot(s.CodeDir())
	require.NoError(t, err)
	assert.Equal(t, "code", rel)

	rel, err = s.RelativeToRoot(filepath.Join(s.CodeDir(), "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "code/main.py", rel)

	_, err = s.RelativeToRoot("/somewhere/else")
	require.Error(t, err)

	// The shared cache lives beside the execution tree, not under it.
	_, err = s.RelativeToRoot(s.CacheDir())
	require.Error(t, err)
}

func TestAppendLogWritesLiveFile(t *testing.T) {
	root := t.TempDir()
	s := New(root, "ctx1", "exec1", "code1")
	require.NoError(t, s.Init(nil))

	require.NoError(t, s.AppendLog("first line"))
	require.NoError(t, s.AppendLog("second line"))
	require.NoError(t, s.CloseLog())

	entries, err := os.ReadDir(s.LogsDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "output_")

	content, err := os.ReadFile(filepath.Join(s.LogsDir(), entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond line\n", string(content))
}

func TestCleanupRemovesCodeDirOnly(t *testing.T) {
	root := t.TempDir()
	s := New(root, "ctx1", "exec1", "code1")
	require.NoError(t, s.Init(map[string]string{"index.ts": "x"}, "deno-cache"))
	require.NoError(t, s.AppendLog("one line"))

	require.NoError(t, s.Cleanup())

	assert.NoDirExists(t, s.CodeDir())
	assert.DirExists(t, s.CacheDir())
	assert.DirExists(t, s.LogsDir())
}
