package validate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zachgrayio/bkvalidate/src/core"
	"github.com/zachgrayio/bkvalidate/src/fs"
)

// Path validates that a path referenced from CI configuration exists. Relative paths are
// resolved against the workspace root; nothing is checked if there isn't one.
func (v *Validator) Path(path string) error {
	if !v.ctx.Enabled() || v.ctx.IsValidated(core.Paths, path) {
		return nil
	}
	ws := v.ctx.Workspace()
	if ws == "" {
		v.reporter.Skip(KindPath)
		return nil
	}
	full := path
	if !filepath.IsAbs(path) {
		full = filepath.Join(ws, strings.TrimPrefix(path, "./"))
	}
	if !fs.PathExists(full) {
		return v.reporter.Report(KindPath, fmt.Errorf("Path validation failed: %w: '%s' (resolved to %s)", core.ErrInvalidPath, path, full))
	}
	v.ctx.MarkValidated(core.Paths, path)
	return v.reporter.Report(KindPath, nil)
}

// EnvVar validates that an environment variable referenced from CI configuration is set.
func (v *Validator) EnvVar(name string) error {
	if !v.ctx.Enabled() || v.ctx.IsValidated(core.EnvVars, name) {
		return nil
	}
	if _, present := v.lookupEnv(name); !present {
		return v.reporter.Report(KindEnvVar, fmt.Errorf("%w: '%s'", core.ErrMissingEnvVar, name))
	}
	v.ctx.MarkValidated(core.EnvVars, name)
	return v.reporter.Report(KindEnvVar, nil)
}
