// Package query validates command lines by asking Bazel what their targets are.
// This is slower than looking at BUILD files but sees targets generated by macros.
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/zachgrayio/bkvalidate/src/cli/logging"
	"github.com/zachgrayio/bkvalidate/src/core"
	"github.com/zachgrayio/bkvalidate/src/process"
)

var log = logging.Log

// A Result maps the labels of rules matched by a query to their kind, e.g. go_binary.
type Result map[string]string

// Labels returns the labels in the result, sorted.
func (r Result) Labels() []string {
	labels := maps.Keys(r)
	slices.Sort(labels)
	return labels
}

// A queryError is a validation failure; it wraps core.ErrQueryTarget without changing the message.
type queryError string

func (err queryError) Error() string {
	return string(err)
}

func (err queryError) Unwrap() error {
	return core.ErrQueryTarget
}

// A Validator runs queries.
type Validator struct {
	config *core.Configuration
	runner process.Runner
}

// New returns a new Validator.
func New(config *core.Configuration, runner process.Runner) *Validator {
	return &Validator{config: config, runner: runner}
}

// Validate checks that the targets in a command line exist and are suitable for the given verb.
// It returns the rules the targets matched.
func (v *Validator) Validate(verb core.Verb, args []string, workspace, pkg string) (Result, error) {
	targets := core.ExtractTargets(args)
	if len(targets) == 0 {
		return Result{}, nil
	}
	expr, err := Expression(targets, pkg)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	output, err := v.runner.Run(workspace, []string{v.config.Bazel.Tool, "query", expr, "--output=label_kind"})
	if err != nil {
		return nil, fmt.Errorf("Failed to run bazel query: %w", err)
	}
	log.Debug("Query completed in %s", time.Since(start).Round(time.Millisecond))
	if !output.Success() {
		return nil, queryFailure(string(output.Stderr))
	}
	result := ParseLabelKind(output.Stdout)
	return result, checkVerb(verb, result)
}

// Expression returns a query expression for the union of the given targets, resolving
// relative ones against the current package.
func Expression(targets []string, pkg string) (string, error) {
	resolved := make([]string, len(targets))
	for i, target := range targets {
		if core.IsWildcard(target) || !core.IsRelativeLabel(target) {
			resolved[i] = target
			continue
		}
		label, err := core.ResolveLabel(target, pkg)
		if err != nil {
			return "", err
		}
		resolved[i] = label.String()
	}
	return strings.Join(resolved, " + "), nil
}

// ParseLabelKind parses the output of a query with --output=label_kind.
// Only rules are included; source and generated files are ignored.
func ParseLabelKind(output []byte) Result {
	result := Result{}
	for _, line := range strings.Split(string(output), "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), " ", 3)
		if len(parts) == 3 && parts[1] == "rule" {
			result[parts[2]] = parts[0]
		}
	}
	return result
}

// VerbTargetCompatibility returns an error if the given target can't be used with the verb.
// Only run is restrictive: its target must be executable.
func VerbTargetCompatibility(verb core.Verb, target, kind string) error {
	if verb == "run" && !strings.Contains(kind, "_binary") && !strings.Contains(kind, "_test") {
		return queryError(fmt.Sprintf("Cannot run '%s': '%s' is not an executable target (must be *_binary or *_test).", target, kind))
	}
	return nil
}

func checkVerb(verb core.Verb, result Result) error {
	switch verb {
	case "run":
		if len(result) != 1 {
			return queryError(fmt.Sprintf("bazel run requires exactly one target, found %d", len(result)))
		}
		target := result.Labels()[0]
		return VerbTargetCompatibility(verb, target, result[target])
	case "test":
		if len(result) == 0 {
			return nil
		}
		for _, kind := range result {
			if strings.Contains(kind, "_test") {
				return nil
			}
		}
		labels := result.Labels()
		for i, label := range labels {
			labels[i] = strconv.Quote(label)
		}
		return queryError(fmt.Sprintf("No test targets found. Targets [%s] are not test targets.", strings.Join(labels, ", ")))
	}
	return nil
}

// queryFailure picks out the most useful part of a failed query's stderr.
func queryFailure(stderr string) error {
	for _, line := range strings.Split(stderr, "\n") {
		if strings.Contains(line, "no such target") || strings.Contains(line, "no such package") {
			return queryError(strings.TrimSpace(line))
		}
	}
	return queryError("Bazel query failed: " + strings.TrimSpace(stderr))
}
