package dryrun

import (
	"github.com/zachgrayio/bkvalidate/src/bep"
)

// A Result is what we learned from the build events of a dry run.
type Result struct {
	// ExpandedTargets are the targets the command's patterns expanded to, in the order Bazel
	// announced them. Each appears only once.
	ExpandedTargets []string
	// TargetKinds maps configured targets to their kind, e.g. "go_library rule".
	TargetKinds     map[string]string
	ExplicitOptions []string
	Command         *string
	ExitCode        *int
	// Success is true until the build aborts or finishes unsuccessfully. An abort is final.
	Success bool
	// Errors are the descriptions of any unexpected aborts.
	Errors []string
	// Stderr is the console stderr as reported through progress events.
	Stderr           string
	InvocationID     string
	BuildToolVersion string

	aborted bool
	seen    map[string]struct{}
}

// NewResult returns a new, empty result.
func NewResult() *Result {
	return &Result{
		TargetKinds: map[string]string{},
		Success:     true,
		seen:        map[string]struct{}{},
	}
}

// Fold updates the result with a single event. Events should be given in stream order.
func (r *Result) Fold(event *bep.Event) {
	if event.ID.Kind == bep.PatternID {
		for _, child := range event.Children {
			if (child.Kind == bep.TargetConfiguredID || child.Kind == bep.TargetCompletedID) && child.Label != "" {
				r.addTarget(child.Label)
			}
		}
	}
	switch p := event.Payload.(type) {
	case *bep.Started:
		command := p.Command
		r.Command = &command
		r.InvocationID = p.UUID
		r.BuildToolVersion = p.BuildToolVersion
	case *bep.OptionsParsed:
		r.ExplicitOptions = p.ExplicitCmdLine
	case *bep.Configured:
		if event.ID.Kind == bep.TargetConfiguredID && event.ID.Label != "" && p.TargetKind != "" {
			if r.TargetKinds == nil {
				r.TargetKinds = map[string]string{}
			}
			r.TargetKinds[event.ID.Label] = p.TargetKind
		}
	case *bep.Aborted:
		if !p.Reason.Intentional() {
			if p.Description != "" {
				r.Errors = append(r.Errors, p.Description)
			}
			r.Success = false
			r.aborted = true
		}
	case *bep.Finished:
		if p.ExitCode != nil {
			code := int(p.ExitCode.Code)
			r.ExitCode = &code
			if !r.aborted {
				r.Success = code == 0
			}
		}
	case *bep.Progress:
		r.Stderr += p.Stderr
	}
}

func (r *Result) addTarget(label string) {
	if r.seen == nil {
		r.seen = map[string]struct{}{}
	}
	if _, present := r.seen[label]; !present {
		r.seen[label] = struct{}{}
		r.ExpandedTargets = append(r.ExpandedTargets, label)
	}
}
