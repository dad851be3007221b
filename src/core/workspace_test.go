package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeWorkspace(t *testing.T, marker string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, marker), nil, 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "foo", "bar"), 0755))
	return root
}

func TestFindWorkspaceFromBasePath(t *testing.T) {
	root := makeWorkspace(t, ModuleFileName)
	config := DefaultConfiguration()
	config.Workspace.BasePath = filepath.Join(root, "foo", "bar")
	assert.Equal(t, root, FindWorkspace(config))
}

func TestFindWorkspaceOverrideWins(t *testing.T) {
	root := makeWorkspace(t, WorkspaceFileName)
	other := makeWorkspace(t, ModuleFileName)
	config := DefaultConfiguration()
	config.Workspace.Root = filepath.Join(root, "foo")
	config.Workspace.BasePath = other
	assert.Equal(t, root, FindWorkspace(config))
}

func TestFindWorkspaceMissingOverrideFallsBack(t *testing.T) {
	root := makeWorkspace(t, ModuleFileName)
	config := DefaultConfiguration()
	config.Workspace.Root = filepath.Join(root, "does", "not", "exist")
	config.Workspace.BasePath = filepath.Join(root, "foo")
	assert.Equal(t, root, FindWorkspace(config))
}

func TestFindWorkspaceNone(t *testing.T) {
	assert.Equal(t, "", FindWorkspace(DefaultConfiguration()))
	config := DefaultConfiguration()
	config.Workspace.BasePath = t.TempDir()
	assert.Equal(t, "", FindWorkspace(config))
}

func TestCurrentPackage(t *testing.T) {
	pkg, ok := CurrentPackage("/home/user/myproject", "/home/user/myproject/foo/bar")
	assert.True(t, ok)
	assert.Equal(t, "foo/bar", pkg)
	pkg, ok = CurrentPackage("/home/user/myproject", "/home/user/myproject")
	assert.True(t, ok)
	assert.Equal(t, "", pkg)
	_, ok = CurrentPackage("/home/user/myproject", "/home/user/other")
	assert.False(t, ok)
}
