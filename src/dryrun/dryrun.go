// Package dryrun runs Bazel without building anything and inspects the build events it writes,
// which tells us what targets a command would build and whether analysis succeeds.
package dryrun

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/peterebden/go-deferred-regex"
	"golang.org/x/exp/slices"

	"github.com/zachgrayio/bkvalidate/src/bep"
	"github.com/zachgrayio/bkvalidate/src/cli"
	"github.com/zachgrayio/bkvalidate/src/cli/logging"
	"github.com/zachgrayio/bkvalidate/src/core"
	"github.com/zachgrayio/bkvalidate/src/metrics"
	"github.com/zachgrayio/bkvalidate/src/process"
)

var log = logging.Log

// errorLine matches the lines of Bazel's stderr that describe a real problem.
var errorLine = deferredregex.DeferredRegex{Re: `ERROR:|no such`}

// A Failure is returned when a dry run finds something wrong.
// It wraps core.ErrAborted if analysis went wrong, or core.ErrNonZeroExit if Bazel failed some other way.
type Failure struct {
	Message string
	Result  *Result
	kind    error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.kind
}

// An Analyzer performs dry runs.
type Analyzer struct {
	config  *core.Configuration
	runner  process.Runner
	metrics *metrics.Metrics
	// TempDir is where build event files are written. Defaults to the system temp dir.
	TempDir string
}

// New returns a new Analyzer. The metrics may be nil.
func New(config *core.Configuration, runner process.Runner, m *metrics.Metrics) *Analyzer {
	return &Analyzer{
		config:  config,
		runner:  runner,
		metrics: m,
		TempDir: os.TempDir(),
	}
}

// Run performs a dry run of the given verb and arguments in the workspace.
// Verbs that support it are given --nobuild so nothing is actually compiled or run.
func (a *Analyzer) Run(verb core.Verb, args []string, workspace string) (*Result, error) {
	bepFile := filepath.Join(a.TempDir, fmt.Sprintf("bep_dry_run_%d_%s.bin", os.Getpid(), uuid.New()))
	defer os.Remove(bepFile)
	nobuild := verb.SupportsNoBuild(a.config)
	argv := a.command(verb, nobuild, args, bepFile)

	start := time.Now()
	output, err := a.runner.Run(workspace, argv)
	if err != nil {
		return nil, err
	}
	log.Debug("Dry run completed in %s", time.Since(start).Round(time.Millisecond))

	info, err := os.Stat(bepFile)
	if err != nil {
		return nil, &Failure{
			Message: "Dry run failed: " + string(output.Stderr),
			kind:    core.ErrNonZeroExit,
		}
	}
	start = time.Now()
	events, err := bep.ReadFile(bepFile)
	if err != nil {
		return nil, fmt.Errorf("Failed to parse BEP file: %w", err)
	}
	a.metrics.RecordEvents(len(events))
	log.Debug("Read %d build events (%s) in %s", len(events), humanize.Bytes(uint64(info.Size())), time.Since(start).Round(time.Microsecond))

	result := NewResult()
	for _, event := range events {
		result.Fold(event)
	}
	return result, a.check(result, nobuild, output)
}

// command returns the command line for a dry run. Our flags go before any -- separator so
// they aren't taken as target patterns.
func (a *Analyzer) command(verb core.Verb, nobuild bool, args []string, bepFile string) []string {
	argv := []string{a.config.Bazel.Tool, verb.String()}
	if nobuild {
		argv = append(argv, "--nobuild")
	}
	flag := "--build_event_binary_file=" + bepFile
	if idx := slices.Index(args, "--"); idx != -1 {
		argv = append(argv, args[:idx]...)
		argv = append(argv, flag)
		return append(argv, args[idx:]...)
	}
	argv = append(argv, args...)
	return append(argv, flag)
}

// check returns an error describing anything that went wrong in the dry run.
func (a *Analyzer) check(result *Result, nobuild bool, output *process.Result) error {
	if len(result.Errors) > 0 {
		return &Failure{Message: strings.Join(result.Errors, "\n"), Result: result, kind: core.ErrAborted}
	}
	if stderr := cli.StripAnsi.ReplaceAllString(result.Stderr, ""); strings.Contains(stderr, "ERROR:") {
		if errs := a.errorLines(stderr); len(errs) > 0 {
			return &Failure{Message: strings.Join(errs, "\n"), Result: result, kind: core.ErrAborted}
		}
	}
	if result.ExitCode != nil && *result.ExitCode != 0 && !nobuild {
		return &Failure{
			Message: fmt.Sprintf("Dry run failed with exit code %d: %s", *result.ExitCode, output.Stderr),
			Result:  result,
			kind:    core.ErrNonZeroExit,
		}
	}
	return nil
}

// errorLines returns the lines of stderr that describe errors, excluding benign ones.
func (a *Analyzer) errorLines(stderr string) []string {
	var ret []string
	for _, line := range strings.Split(stderr, "\n") {
		if errorLine.FindStringSubmatch(line) != nil && !a.isBenign(line) {
			ret = append(ret, line)
		}
	}
	return ret
}

func (a *Analyzer) isBenign(line string) bool {
	for _, benign := range a.config.BenignErrors() {
		if strings.Contains(line, benign) {
			return true
		}
	}
	return false
}
