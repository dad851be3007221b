package core

import (
	"path/filepath"
	"strings"

	"github.com/zachgrayio/bkvalidate/src/fs"
)

// Marker files identifying the root of a Bazel workspace.
const (
	ModuleFileName    = "MODULE.bazel"
	WorkspaceFileName = "WORKSPACE"
)

// FindWorkspace locates the workspace root by walking upwards from the configured root override
// (if it exists) or otherwise the base path. It returns the empty string if neither is set or no
// marker file is found before reaching the filesystem root.
func FindWorkspace(config *Configuration) string {
	start := config.Workspace.BasePath
	if root := config.Workspace.Root; root != "" && fs.IsDirectory(root) {
		start = root
	}
	if start == "" {
		return ""
	}
	return fs.FindUp(start, ModuleFileName, WorkspaceFileName)
}

// CurrentPackage returns the package corresponding to dir within the given workspace.
// The second return value is false if dir isn't inside the workspace.
func CurrentPackage(workspace, dir string) (string, bool) {
	rel, err := filepath.Rel(workspace, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	} else if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}
