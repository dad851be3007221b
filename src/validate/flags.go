package validate

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"

	"github.com/zachgrayio/bkvalidate/src/core"
)

// FilterFlags returns the flags from a command line that canonicalize-flags can check. Anything
// after a -- separator is ignored, as are target patterns and subtractions of them; in strict
// mode -:target subtractions are also excluded.
func FilterFlags(args []string, strict bool) []string {
	var flags []string
	for _, arg := range args {
		if arg == "--" {
			break
		} else if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "-//") || strings.HasPrefix(arg, "-@") {
			continue
		} else if strict && strings.HasPrefix(arg, "-:") {
			continue
		}
		flags = append(flags, arg)
	}
	return flags
}

// Flags validates the flags in the given arguments for a verb by asking Bazel to canonicalise them.
// If Bazel can't be run at all, a warning is logged and the flags are assumed to be fine.
func (v *Validator) Flags(verb string, args []string) error {
	if !v.ctx.Enabled() || len(args) == 0 {
		return nil
	}
	_, err := v.Canonicalize(verb, args)
	if errors.Is(err, core.ErrToolNotFound) {
		log.Warning("Could not validate flags (%s not found): %s", v.ctx.Config.Bazel.Tool, err)
		v.reporter.Skip(KindFlags)
		return nil
	} else if errors.Is(err, core.ErrWorkspaceNotFound) {
		v.ctx.WarnNoWorkspace()
		v.reporter.Skip(KindFlags)
		return nil
	}
	return v.reporter.Report(KindFlags, err)
}

// FlagsString is like Flags but takes the flags as a single string, split as a shell would.
func (v *Validator) FlagsString(verb, flags string) error {
	args, err := shlex.Split(flags)
	if err != nil {
		return v.reporter.Report(KindFlags, fmt.Errorf("%w: can't split %q: %s", core.ErrFlagRejected, flags, err))
	}
	return v.Flags(verb, args)
}

// Canonicalize returns Bazel's canonical form of the flags in the given arguments for a verb.
// Results are cached in the context, so each distinct set of flags only runs Bazel once.
func (v *Validator) Canonicalize(verb string, args []string) ([]string, error) {
	flags := FilterFlags(args, v.ctx.Config.Validation.StrictFlags)
	if len(flags) == 0 {
		return nil, nil
	}
	key := core.CacheKey(verb, flags)
	if canonical, present := v.ctx.CachedFlags(key); present {
		log.Debug("Flags cache hit for %s (%d flags)", verb, len(flags))
		return canonical, nil
	}
	ws := v.ctx.Workspace()
	if ws == "" {
		return nil, core.ErrWorkspaceNotFound
	}
	// N.B. The context lock is not held here; concurrent misses may both run Bazel.
	argv := append([]string{v.ctx.Config.Bazel.Tool, "canonicalize-flags", "--for_command=" + verb, "--"}, flags...)
	result, err := v.runner.Run(ws, argv)
	if err != nil {
		return nil, err
	} else if !result.Success() {
		return nil, fmt.Errorf("%w for %v: %s", core.ErrFlagRejected, flags, flagError(result.Stderr))
	}
	canonical := lines(result.Stdout)
	v.ctx.CacheFlags(key, canonical)
	return canonical, nil
}

// flagError picks out the most useful line from canonicalize-flags' stderr.
func flagError(stderr []byte) string {
	for _, line := range strings.Split(string(stderr), "\n") {
		if strings.Contains(line, "Unrecognized") || strings.Contains(line, "Error") {
			return line
		}
	}
	return strings.TrimSpace(string(stderr))
}

// lines splits output into its non-empty lines.
func lines(b []byte) []string {
	var ret []string
	for _, line := range bytes.Split(b, []byte{'\n'}) {
		if line := strings.TrimRight(string(line), "\r"); line != "" {
			ret = append(ret, line)
		}
	}
	return ret
}
