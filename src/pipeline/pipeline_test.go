package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zachgrayio/bkvalidate/src/core"
	"github.com/zachgrayio/bkvalidate/src/dryrun"
	"github.com/zachgrayio/bkvalidate/src/query"
	"github.com/zachgrayio/bkvalidate/src/process"
	"github.com/zachgrayio/bkvalidate/src/validate"
)

func TestScanFile(t *testing.T) {
	cmds, err := ScanFile("test_data/pipeline.yml")
	require.NoError(t, err)
	require.Equal(t, 4, len(cmds))

	assert.Equal(t, "build", cmds[0].StepKey)
	assert.Equal(t, core.Verb("build"), cmds[0].Verb)
	assert.Equal(t, []string{"--config=ci", "//app:lib", "//app:main"}, cmds[0].Args)

	assert.Equal(t, "unit", cmds[1].StepKey)
	assert.Equal(t, core.Verb("test"), cmds[1].Verb)
	assert.Equal(t, []string{"//app:main_test", "--test_output=errors"}, cmds[1].Args)

	assert.Equal(t, "Chained", cmds[2].Step())
	assert.Equal(t, core.Verb("run"), cmds[2].Verb)
	assert.Equal(t, []string{"//app:main", "--", "--port=8080"}, cmds[2].Args)
	assert.Equal(t, []string{"//app:main"}, cmds[2].Targets())

	assert.Equal(t, core.Verb("build"), cmds[3].Verb)
	assert.Equal(t, []string{"//app:lib", ":root"}, cmds[3].Args)
}

func TestScanInvalid(t *testing.T) {
	_, err := Scan([]byte("steps: [\n"))
	assert.Error(t, err)
}

func TestScanEmpty(t *testing.T) {
	cmds, err := Scan([]byte("env:\n  X: y\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, len(cmds))
}

func TestParseCommandLine(t *testing.T) {
	cmds, err := ParseCommandLine("bazel build //a:b; bazel test //c:d || echo 'bazel build nope'")
	require.NoError(t, err)
	require.Equal(t, 2, len(cmds))
	assert.Equal(t, []string{"//a:b"}, cmds[0].Args)
	assert.Equal(t, core.Verb("test"), cmds[1].Verb)

	cmds, err = ParseCommandLine("/usr/local/bin/bazel query 'deps(//a:b)'")
	require.NoError(t, err)
	require.Equal(t, 1, len(cmds))
	assert.Equal(t, []string{"deps(//a:b)"}, cmds[0].Args)

	cmds, err = ParseCommandLine("bazel --version")
	require.NoError(t, err)
	assert.Equal(t, 0, len(cmds))

	_, err = ParseCommandLine(`bazel build "//a:b`)
	assert.Error(t, err)
}

func TestCommandStep(t *testing.T) {
	assert.Equal(t, "key", (&Command{StepKey: "key", StepLabel: "label"}).Step())
	assert.Equal(t, "label", (&Command{StepLabel: "label"}).Step())
	assert.Equal(t, "<unnamed step>", (&Command{}).Step())
}

const appBuild = `
go_library(name = "lib")

go_binary(name = "main")

go_test(name = "main_test")
`

func makeWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, core.ModuleFileName), nil, 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "app"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "app", "BUILD.bazel"), []byte(appBuild), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "BUILD"), []byte(`sh_binary(name = "root")`), 0644))
	return ws
}

func TestBuildFiles(t *testing.T) {
	ws := makeWorkspace(t)
	cmds := []*Command{
		{Verb: "build", Args: []string{"//app:lib", ":root", "//missing:x", "//other/...", "@repo//x:y"}},
		{Verb: "test", Args: []string{"//app:main_test"}},
	}
	assert.Equal(t, []string{
		filepath.Join(ws, "BUILD"),
		filepath.Join(ws, "app", "BUILD.bazel"),
	}, BuildFiles(ws, "", cmds))
}

type recordingRunner struct {
	mutex sync.Mutex
	calls [][]string
}

func (r *recordingRunner) Run(dir string, argv []string) (*process.Result, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.calls = append(r.calls, argv)
	if argv[1] == "canonicalize-flags" {
		for _, arg := range argv {
			if arg == "--bogus" {
				return &process.Result{ExitCode: 2, Stderr: []byte("ERROR: Unrecognized option: --bogus\n")}, nil
			}
		}
		return &process.Result{Stdout: []byte(strings.Join(argv[4:], "\n"))}, nil
	}
	if argv[1] == "query" {
		return &process.Result{Stdout: []byte("go_library rule //app:lib\n")}, nil
	}
	return &process.Result{}, nil
}

func newChecker(t *testing.T, ws string, runner process.Runner) *Checker {
	v := validate.New(core.NewValidationContextForWorkspace(core.DefaultConfiguration(), ws), runner, nil)
	return NewChecker(v)
}

func TestCheck(t *testing.T) {
	ws := makeWorkspace(t)
	runner := &recordingRunner{}
	c := newChecker(t, ws, runner)
	err := c.Check([]*Command{
		{StepKey: "build", Verb: "build", Args: []string{"--config=ci", "//app:lib", ":root"}},
		{StepKey: "test", Verb: "test", Args: []string{"//app:main_test"}},
	})
	assert.NoError(t, err)
	// Only the first command has flags to check.
	assert.Equal(t, 1, len(runner.calls))
}

func TestCheckFailures(t *testing.T) {
	ws := makeWorkspace(t)
	c := newChecker(t, ws, &recordingRunner{})
	err := c.Check([]*Command{
		{StepKey: "build", Verb: "build", Args: []string{"//app:lib", "//app:nope"}},
		{StepKey: "flags", Verb: "build", Args: []string{"--bogus", "//app:lib"}},
		{StepKey: "fine", Verb: "build", Args: []string{"//app:main"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTargetNotFound)
	assert.ErrorIs(t, err, core.ErrFlagRejected)
	assert.Contains(t, err.Error(), "step build: build:")
	assert.Contains(t, err.Error(), "step flags: build:")
	assert.NotContains(t, err.Error(), "step fine")
}

func TestCheckWarnOnly(t *testing.T) {
	ws := makeWorkspace(t)
	config := core.DefaultConfiguration()
	config.Validation.WarnOnly = true
	v := validate.New(core.NewValidationContextForWorkspace(config, ws), &recordingRunner{}, nil)
	err := NewChecker(v).Check([]*Command{
		{StepKey: "build", Verb: "build", Args: []string{"//app:nope", "--bogus"}},
	})
	assert.NoError(t, err)
}

func TestCheckQuery(t *testing.T) {
	ws := makeWorkspace(t)
	runner := &recordingRunner{}
	c := newChecker(t, ws, runner)
	c.Query = query.New(core.DefaultConfiguration(), runner)
	err := c.Check([]*Command{
		{StepKey: "run", Verb: "run", Args: []string{"//app:lib"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrQueryTarget)
}

func TestCheckQueryNoWorkspace(t *testing.T) {
	runner := &recordingRunner{}
	c := newChecker(t, "", runner)
	c.Query = query.New(core.DefaultConfiguration(), runner)
	err := c.Check([]*Command{
		{StepKey: "run", Verb: "run", Args: []string{"//app:lib"}},
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, len(runner.calls))
}

func TestCheckToolNotFound(t *testing.T) {
	ws := makeWorkspace(t)
	runner := process.RunnerFunc(func(dir string, argv []string) (*process.Result, error) {
		return nil, fmt.Errorf("%w: failed to run %s", core.ErrToolNotFound, argv[0])
	})
	c := newChecker(t, ws, runner)
	c.Query = query.New(core.DefaultConfiguration(), runner)
	c.DryRun = dryrun.New(core.DefaultConfiguration(), runner, nil)
	err := c.Check([]*Command{
		{StepKey: "build", Verb: "build", Args: []string{"//app:lib"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrToolNotFound)
	assert.Contains(t, err.Error(), "Failed to run bazel query")
	assert.Equal(t, 2, strings.Count(err.Error(), "build tool not found"))
}
