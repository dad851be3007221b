package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zachgrayio/bkvalidate/src/core"
)

func TestRunSuccess(t *testing.T) {
	e := New()
	result, err := e.Run(t.TempDir(), []string{"sh", "-c", "echo hello; echo world >&2"})
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, "hello\n", string(result.Stdout))
	assert.Equal(t, "world\n", string(result.Stderr))
}

func TestRunNonZeroExit(t *testing.T) {
	e := New()
	result, err := e.Run("", []string{"sh", "-c", "echo oops >&2; exit 3"})
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "oops\n", string(result.Stderr))
}

func TestRunWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	result, err := New().Run(dir, []string{"pwd", "-P"})
	require.NoError(t, err)
	assert.Contains(t, string(result.Stdout), "/")
	assert.True(t, result.Success())
}

func TestRunToolNotFound(t *testing.T) {
	_, err := New().Run("", []string{"definitely-not-a-real-bazel-binary"})
	assert.ErrorIs(t, err, core.ErrToolNotFound)
	_, err = New().Run("", nil)
	assert.ErrorIs(t, err, core.ErrToolNotFound)
}

func TestRunnerFunc(t *testing.T) {
	var r Runner = RunnerFunc(func(dir string, argv []string) (*Result, error) {
		return &Result{Stdout: []byte(dir + " " + argv[0])}, nil
	})
	result, err := r.Run("/ws", []string{"bazel"})
	require.NoError(t, err)
	assert.Equal(t, "/ws bazel", string(result.Stdout))
}

func TestKillAll(t *testing.T) {
	e := New()
	done := make(chan *Result)
	go func() {
		result, _ := e.Run("", []string{"sleep", "30"})
		done <- result
	}()
	// The process may not have started yet the first time round.
	deadline := time.After(5 * time.Second)
	for {
		e.killAll()
		select {
		case result := <-done:
			require.NotNil(t, result)
			assert.False(t, result.Success())
			return
		case <-deadline:
			t.Fatal("process wasn't killed")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
