package fs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, DirPermissions))
	require.NoError(t, os.WriteFile(filepath.Join(root, "MODULE.bazel"), nil, 0644))
	assert.Equal(t, root, FindUp(nested, "MODULE.bazel", "WORKSPACE"))
	assert.Equal(t, root, FindUp(root, "MODULE.bazel"))
}

func TestFindUpNearestWins(t *testing.T) {
	root := t.TempDir()
	inner := filepath.Join(root, "inner")
	require.NoError(t, os.MkdirAll(filepath.Join(inner, "pkg"), DirPermissions))
	require.NoError(t, os.WriteFile(filepath.Join(root, "WORKSPACE"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(inner, "WORKSPACE"), nil, 0644))
	assert.Equal(t, inner, FindUp(filepath.Join(inner, "pkg"), "MODULE.bazel", "WORKSPACE"))
}

func TestFindUpIgnoresDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg", "WORKSPACE"), DirPermissions))
	// Nothing above a temp dir should be a workspace either.
	assert.Equal(t, "", FindUp(filepath.Join(root, "pkg"), "WORKSPACE"))
}

func TestLatestModTime(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, nil, 0644))
	require.NoError(t, os.WriteFile(b, nil, 0644))
	then := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(a, then, then))
	info, err := os.Stat(b)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), LatestModTime(a, b, filepath.Join(dir, "missing")))
	assert.True(t, LatestModTime(filepath.Join(dir, "missing")).IsZero())
}

func TestWriteFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "sub", "file.json")
	require.NoError(t, WriteFile(strings.NewReader("hello"), dest, 0))
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	assert.True(t, FileExists(dest))
	assert.True(t, IsDirectory(filepath.Dir(dest)))
	assert.False(t, FileExists(filepath.Dir(dest)))
	assert.True(t, PathExists(filepath.Dir(dest)))
}

func TestExpandHomePath(t *testing.T) {
	assert.Equal(t, "/home/bob/.bkvalidateconfig", ExpandHomePathTo("~/.bkvalidateconfig", "/home/bob"))
	assert.Equal(t, "/etc/~config", ExpandHomePathTo("/etc/~config", "/home/bob"))
	assert.Equal(t, "/home/bob", ExpandHomePathTo("~", "/home/bob"))
}
