// Package validate implements checking that Bazel targets and flags referenced from CI
// configuration actually exist.
package validate

import (
	"os"

	"github.com/zachgrayio/bkvalidate/src/cli/logging"
	"github.com/zachgrayio/bkvalidate/src/core"
	"github.com/zachgrayio/bkvalidate/src/metrics"
	"github.com/zachgrayio/bkvalidate/src/process"
)

var log = logging.Log

// Kinds of validation, used for reporting.
const (
	KindTarget = "target"
	KindFlags  = "flags"
	KindPath   = "path"
	KindEnvVar = "env_var"
	KindQuery  = "query"
	KindDryRun = "dry_run"
)

// A Validator validates targets, flags, paths and environment variables against a shared context.
// It's safe for concurrent use.
type Validator struct {
	ctx       *core.ValidationContext
	runner    process.Runner
	reporter  *Reporter
	lookupEnv func(string) (string, bool)
}

// New returns a new Validator using the given context and runner for the build tool.
// The metrics may be nil.
func New(ctx *core.ValidationContext, runner process.Runner, m *metrics.Metrics) *Validator {
	return &Validator{
		ctx:       ctx,
		runner:    runner,
		reporter:  NewReporter(ctx.Config, m),
		lookupEnv: os.LookupEnv,
	}
}

// Context returns the context this validator records into.
func (v *Validator) Context() *core.ValidationContext {
	return v.ctx
}

// Reporter returns the reporter this validator sends failures to.
func (v *Validator) Reporter() *Reporter {
	return v.reporter
}
