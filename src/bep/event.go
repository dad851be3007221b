package bep

import "fmt"

// An IDKind identifies what kind of thing a build event is about.
type IDKind int

// The kinds of event IDs that we understand. Anything else is OtherID.
const (
	NoID IDKind = iota
	UnknownID
	ProgressID
	StartedID
	PatternID
	PatternSkippedID
	TargetConfiguredID
	TargetCompletedID
	OptionsParsedID
	BuildFinishedID
	OtherID
)

var idKindNames = [...]string{"none", "unknown", "progress", "started", "pattern", "pattern_skipped", "target_configured", "target_completed", "options_parsed", "build_finished", "other"}

func (k IDKind) String() string {
	if k >= 0 && int(k) < len(idKindNames) {
		return idKindNames[k]
	}
	return fmt.Sprintf("IDKind(%d)", int(k))
}

// An ID identifies a build event. Events announce the IDs of their children, which
// appear as events of their own later in the stream.
type ID struct {
	Kind IDKind
	// Label is set for target-configured and target-completed IDs.
	Label  string
	Aspect string
	// Patterns is set for pattern and pattern-skipped IDs.
	Patterns []string
	// Details is set for unknown IDs.
	Details string
}

// An Event is a single decoded build event.
type Event struct {
	ID          ID
	Children    []ID
	LastMessage bool
	// Payload is one of the payload types below, or nil if it's one we don't care about.
	Payload Payload
}

// A Payload is the content of a build event.
type Payload interface {
	isPayload()
}

// Progress carries a chunk of the console output.
type Progress struct {
	Stdout string
	Stderr string
}

// Aborted means the build stopped before it would otherwise have done.
type Aborted struct {
	Reason      AbortReason
	Description string
}

// Started is the first event of every build.
type Started struct {
	UUID               string
	BuildToolVersion   string
	Command            string
	WorkspaceDirectory string
}

// OptionsParsed describes the options the command was run with.
type OptionsParsed struct {
	CmdLine         []string
	ExplicitCmdLine []string
}

// Configured describes a target once it's been configured.
type Configured struct {
	TargetKind string
	Tags       []string
}

// Finished is the last event of every build.
type Finished struct {
	ExitCode *ExitCode
}

// An ExitCode is the exit status of the build.
type ExitCode struct {
	Name string
	Code int32
}

func (*Progress) isPayload()      {}
func (*Aborted) isPayload()       {}
func (*Started) isPayload()       {}
func (*OptionsParsed) isPayload() {}
func (*Configured) isPayload()    {}
func (*Finished) isPayload()      {}

// An AbortReason explains why a build was aborted.
type AbortReason int32

// Known abort reasons.
const (
	AbortUnknown AbortReason = iota
	AbortUserInterrupted
	AbortTimeOut
	AbortRemoteEnvironmentFailure
	AbortInternal
	AbortLoadingFailure
	AbortAnalysisFailure
	AbortSkipped
	AbortNoAnalyze
	AbortNoBuild
	AbortIncomplete
	AbortOutOfMemory
)

var abortReasonNames = [...]string{"UNKNOWN", "USER_INTERRUPTED", "TIME_OUT", "REMOTE_ENVIRONMENT_FAILURE", "INTERNAL", "LOADING_FAILURE", "ANALYSIS_FAILURE", "SKIPPED", "NO_ANALYZE", "NO_BUILD", "INCOMPLETE", "OUT_OF_MEMORY"}

func (r AbortReason) String() string {
	if r >= 0 && int(r) < len(abortReasonNames) {
		return abortReasonNames[r]
	}
	return fmt.Sprintf("AbortReason(%d)", int32(r))
}

// Intentional returns true if this reason means the build stopped early because it was asked
// to, e.g. by --nobuild, rather than because something went wrong.
func (r AbortReason) Intentional() bool {
	return r == AbortNoBuild || r == AbortNoAnalyze
}
