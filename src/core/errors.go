package core

import "errors"

// Sentinel errors describing the various ways validation can fail.
// Callers wrap these with fmt.Errorf("...: %w") and test with errors.Is.
var (
	// ErrWorkspaceNotFound is returned when no MODULE.bazel or WORKSPACE file can be located.
	ErrWorkspaceNotFound = errors.New("no Bazel workspace found")
	ErrBuildFileNotFound = errors.New("no BUILD file found")
	ErrTargetNotFound    = errors.New("target not found")
	ErrBuildFileParse    = errors.New("failed to parse BUILD file")
	ErrFlagRejected      = errors.New("flag validation failed")
	// ErrToolNotFound is returned when the build tool binary can't be started at all.
	// Only flag canonicalisation carries on without it; every other check fails.
	ErrToolNotFound   = errors.New("build tool not found")
	ErrMalformedEvent = errors.New("malformed build event")
	ErrAborted        = errors.New("build aborted")
	ErrNonZeroExit    = errors.New("build tool exited unsuccessfully")
	ErrQueryTarget    = errors.New("query validation failed")
	ErrInvalidLabel   = errors.New("invalid label")
	ErrInvalidPath    = errors.New("path does not exist")
	ErrMissingEnvVar  = errors.New("environment variable not set")
)

// IsSoft returns true if the given error is one that should never fail a validation run,
// i.e. one where we log and carry on instead.
func IsSoft(err error) bool {
	return errors.Is(err, ErrWorkspaceNotFound) || errors.Is(err, ErrMalformedEvent)
}
