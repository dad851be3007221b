package help

var miscTopics = helpSection{
	Topics: map[string]string{
		"labels": `
Labels identify Bazel targets. bkvalidate accepts the usual forms:

  //path/to/package:target   an absolute label
  //path/to/package          shorthand for //path/to/package:package
  :target                    relative to the current package (see --package)
  @repo//package:target      a target in an external repository

Wildcards such as //path/... and //path:all are expanded by Bazel, so they are not checked
against BUILD files. Labels prefixed with - subtract from the target set and are skipped
entirely.
`,
		"dryrun": `
bkvalidate dryrun <verb> [-- args...] runs the Bazel command with --nobuild (for verbs that
support it) and a --build_event_binary_file to read back what it would have done.

It reports the expanded targets and their kinds, and fails if Bazel aborted the build,
printed ERROR lines on stderr that aren't listed in bazel.benignerror, or exited non-zero.
`,
		"pipeline": `
bkvalidate pipeline <files...> finds every bazel or bazelisk command in the given Buildkite
pipeline files and checks its targets and flags. Group steps are searched recursively and
commands joined with && or ; are checked separately.

With --query and --dry_run each command is also checked with bazel query and a dry run.
With --watch the pipelines and the BUILD files they refer to are watched and checked again
whenever they change.
`,
		"environment": `
The following environment variables affect bkvalidate:

  BUILDKITE_SKIP_RUNTIME_VALIDATION   set to true to disable validation entirely
  BUILDKITE_VALIDATION_WARN_ONLY      set to true to log failures as warnings
  BUILD_WORKSPACE_DIRECTORY           the root of the Bazel workspace
  BUILDKITE_VALIDATION_BASE_PATH      where to search upwards for the workspace from
`,
		"flags": `
bkvalidate flags <verb> [-- flags...] checks flags by running bazel canonicalize-flags
for the given verb. Results are cached for the lifetime of the process, and optionally in
.buildkite/.bazel-flags-cache.json (see validation.persistflagscache) until a .bazelrc
file changes.
`,
	},
}
