// Package buildfile finds and inspects BUILD files.
//
// This is a purely syntactic inspection; only literal rule calls at the top level of a file are
// seen. Targets generated by macros, loops or computed names are invisible to it.
package buildfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bazelbuild/buildtools/build"

	"github.com/zachgrayio/bkvalidate/src/core"
	"github.com/zachgrayio/bkvalidate/src/fs"
)

// FileNames are the names of BUILD files, in order of preference.
var FileNames = []string{"BUILD.bazel", "BUILD"}

// A Rule is a single rule call found in a BUILD file.
type Rule struct {
	Kind string
	Name string
}

// Find returns the path to the BUILD file for the given package.
func Find(workspace, pkg string) (string, error) {
	dir := filepath.Join(workspace, pkg)
	for _, name := range FileNames {
		if path := filepath.Join(dir, name); fs.FileExists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w for package '%s' in %s (looked for %s and %s)", core.ErrBuildFileNotFound, pkg, dir, FileNames[0], FileNames[1])
}

// Rules returns all the named rule calls in the given BUILD file, in the order they appear.
func Rules(filename string) ([]Rule, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %s", core.ErrBuildFileParse, filename, err)
	}
	return Parse(filename, data)
}

// Parse parses the contents of a BUILD file and returns the named rule calls in it.
func Parse(filename string, data []byte) ([]Rule, error) {
	f, err := build.ParseBuild(filename, data)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %s", core.ErrBuildFileParse, filename, err)
	}
	var rules []Rule
	for _, stmt := range f.Stmt {
		call, ok := stmt.(*build.CallExpr)
		if !ok {
			continue
		}
		if name := nameArg(call); name != "" {
			rules = append(rules, Rule{Kind: callKind(call.X), Name: name})
		}
	}
	return rules, nil
}

// TargetExists returns true if the given BUILD file contains a rule with the given name.
func TargetExists(filename, name string) (bool, error) {
	rules, err := Rules(filename)
	if err != nil {
		return false, err
	}
	for _, rule := range rules {
		if rule.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// nameArg returns the literal value of the name argument to a call, or the empty string if
// there isn't one.
func nameArg(call *build.CallExpr) string {
	for _, arg := range call.List {
		assign, ok := arg.(*build.AssignExpr)
		if !ok {
			continue
		}
		if ident, ok := assign.LHS.(*build.Ident); ok && ident.Name == "name" {
			if str, ok := assign.RHS.(*build.StringExpr); ok {
				return str.Value
			}
		}
	}
	return ""
}

// callKind returns the name of the function being called, e.g. cc_binary or native.genrule.
func callKind(expr build.Expr) string {
	switch x := expr.(type) {
	case *build.Ident:
		return x.Name
	case *build.DotExpr:
		if prefix := callKind(x.X); prefix != "" {
			return prefix + "." + x.Name
		}
		return x.Name
	}
	return ""
}
