package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zachgrayio/bkvalidate/src/buildfile"
	"github.com/zachgrayio/bkvalidate/src/core"
)

// Target validates that a single label refers to a rule that exists.
// Relative labels are resolved against pkg. Wildcards and external labels are skipped, as is
// everything if there's no workspace.
func (v *Validator) Target(label, pkg string) error {
	if !v.ctx.Enabled() || core.ShouldSkip(label) {
		return nil
	}
	resolved, err := core.ResolveLabel(label, pkg)
	if err != nil {
		return v.reporter.Report(KindTarget, fmt.Errorf("Target validation failed: %w", err))
	}
	// Relative labels mean different things in different packages.
	key := label
	if core.IsRelativeLabel(label) {
		key = resolved.String()
	}
	if v.ctx.IsValidated(core.Targets, key) {
		return nil
	}
	ws := v.ctx.Workspace()
	if ws == "" {
		v.ctx.WarnNoWorkspace()
		v.reporter.Skip(KindTarget)
		return nil
	}
	if err := checkTarget(ws, resolved); err != nil {
		if errors.Is(err, core.ErrBuildFileParse) {
			return v.reporter.Report(KindTarget, fmt.Errorf("Failed to parse BUILD file for '%s': %w", label, err))
		}
		return v.reporter.Report(KindTarget, fmt.Errorf("Target validation failed for '%s': %w", label, err))
	}
	v.ctx.MarkValidated(core.Targets, key)
	return v.reporter.Report(KindTarget, nil)
}

// Targets validates a whitespace-separated list of labels, as they'd be given on a command line.
// Subtracted targets (those starting with -) are ignored. Every label is checked even if an
// earlier one fails; all failures are returned together.
func (v *Validator) Targets(targets, pkg string) error {
	var errs []error
	for _, target := range strings.Fields(targets) {
		if strings.HasPrefix(target, "-") {
			continue
		}
		if err := v.Target(target, pkg); err != nil {
			errs = append(errs, err)
		}
	}
	return combine(errs)
}

// TargetExists checks that the given label exists in the workspace, without recording
// anything or consulting any configuration.
func TargetExists(workspace, label, pkg string) error {
	resolved, err := core.ResolveLabel(label, pkg)
	if err != nil {
		return err
	}
	return checkTarget(workspace, resolved)
}

// FastValidateTargets checks every target pattern in a list of command-line arguments, stopping
// at the first one that doesn't exist.
func FastValidateTargets(args []string, workspace, pkg string) error {
	for _, target := range core.ExtractTargets(args) {
		if core.ShouldSkip(target) {
			continue
		}
		if err := TargetExists(workspace, target, pkg); err != nil {
			return err
		}
	}
	return nil
}

func checkTarget(workspace string, label core.Label) error {
	path, err := buildfile.Find(workspace, label.Package)
	if err != nil {
		return err
	}
	rules, err := buildfile.Rules(path)
	if err != nil {
		return err
	}
	names := make([]string, len(rules))
	for i, rule := range rules {
		if rule.Name == label.Target {
			return nil
		}
		names[i] = rule.Name
	}
	return fmt.Errorf("%w: '%s' is not defined in %s%s", core.ErrTargetNotFound, label, path, suggestion(label.Target, names))
}
