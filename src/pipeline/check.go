package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/zachgrayio/bkvalidate/src/dryrun"
	"github.com/zachgrayio/bkvalidate/src/query"
	"github.com/zachgrayio/bkvalidate/src/validate"
)

// A Checker validates the commands found in a pipeline.
type Checker struct {
	validator *validate.Validator
	// Query and DryRun are optional, more expensive checks that invoke Bazel for each command.
	Query  *query.Validator
	DryRun *dryrun.Analyzer
	// Package is the current package that relative labels are resolved against.
	Package     string
	Parallelism int
}

// NewChecker returns a new Checker that validates targets and flags with the given validator.
func NewChecker(validator *validate.Validator) *Checker {
	return &Checker{validator: validator, Parallelism: 4}
}

// Check validates all the given commands concurrently. Every command is checked; the returned
// error describes all the failures, each prefixed with the step it came from.
func (c *Checker) Check(cmds []*Command) error {
	var mutex sync.Mutex
	var errs *multierror.Error
	var g errgroup.Group
	g.SetLimit(c.parallelism())
	for _, cmd := range cmds {
		cmd := cmd
		g.Go(func() error {
			if err := c.check(cmd); err != nil {
				mutex.Lock()
				defer mutex.Unlock()
				errs = multierror.Append(errs, fmt.Errorf("step %s: %s: %w", cmd.Step(), cmd.Verb, err))
			}
			return nil
		})
	}
	g.Wait()
	return errs.ErrorOrNil()
}

func (c *Checker) parallelism() int {
	if c.Parallelism < 1 {
		return 1
	}
	return c.Parallelism
}

// check validates a single command. Failures are collected across each kind of check.
func (c *Checker) check(cmd *Command) error {
	var errs *multierror.Error
	reporter := c.validator.Reporter()
	if err := c.validator.Targets(strings.Join(cmd.Targets(), " "), c.Package); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := c.validator.Flags(cmd.Verb.String(), cmd.Args); err != nil {
		errs = multierror.Append(errs, err)
	}
	ctx := c.validator.Context()
	if (c.Query == nil && c.DryRun == nil) || !ctx.Enabled() {
		return errs.ErrorOrNil()
	}
	ws := ctx.Workspace()
	if ws == "" {
		ctx.WarnNoWorkspace()
		return errs.ErrorOrNil()
	}
	if c.Query != nil {
		_, err := c.Query.Validate(cmd.Verb, cmd.Args, ws, c.Package)
		if err := reporter.Report(validate.KindQuery, err); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if c.DryRun != nil {
		result, err := c.DryRun.Run(cmd.Verb, cmd.Args, ws)
		if err == nil {
			log.Info("Dry run of %s %s matched %d targets", cmd.Verb, strings.Join(cmd.Targets(), " "), len(result.ExpandedTargets))
		}
		if err := reporter.Report(validate.KindDryRun, err); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
