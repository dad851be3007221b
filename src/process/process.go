// Package process implements running the build tool as a subprocess.
package process

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/alessio/shellescape"

	"github.com/zachgrayio/bkvalidate/src/cli"
	"github.com/zachgrayio/bkvalidate/src/cli/logging"
	"github.com/zachgrayio/bkvalidate/src/core"
)

var log = logging.Log

// A Result is the outcome of running a command to completion.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Success returns true if the command exited zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// A Runner runs commands. It's an interface so we can test without a real Bazel around.
//
// Run runs argv in the given directory and waits for it to finish. A command that runs but exits
// unsuccessfully is not an error; the error is only non-nil if it couldn't be run at all, in
// which case it wraps core.ErrToolNotFound if it couldn't be started.
type Runner interface {
	Run(dir string, argv []string) (*Result, error)
}

// RunnerFunc adapts a function to a Runner.
type RunnerFunc func(dir string, argv []string) (*Result, error)

// Run implements the Runner interface.
func (f RunnerFunc) Run(dir string, argv []string) (*Result, error) {
	return f(dir, argv)
}

// An Executor handles starting, running and monitoring a set of subprocesses.
// It registers as a signal handler to attempt to terminate them all at process exit.
type Executor struct {
	processes map[*exec.Cmd]struct{}
	mutex     sync.Mutex
}

// New returns a new Executor.
func New() *Executor {
	e := &Executor{
		processes: map[*exec.Cmd]struct{}{},
	}
	cli.AtExit(e.killAll) // Kill any subprocess if we are ourselves killed
	return e
}

// Run implements the Runner interface.
// There is no timeout; a build tool that hangs will hang us too.
func (e *Executor) Run(dir string, argv []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty command", core.ErrToolNotFound)
	}
	cmd := e.ExecCommand(argv[0], argv[1:]...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Debug("Running %s in %s", shellescape.QuoteCommand(argv), dir)
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to run %s: %s", core.ErrToolNotFound, argv[0], err)
	}
	e.addProcess(cmd)
	defer e.removeProcess(cmd)
	err := cmd.Wait()
	log.Debug("%s completed in %s", argv[0], time.Since(start).Round(time.Millisecond))
	result := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, err
		}
		result.ExitCode = exitErr.ExitCode()
		if result.ExitCode == -1 {
			result.ExitCode = 1 // Killed by a signal.
		}
	}
	return result, nil
}

// KillProcess kills a process, attempting to send it a SIGTERM first followed by a SIGKILL
// shortly after if it hasn't exited.
func (e *Executor) KillProcess(cmd *exec.Cmd) {
	success := killProcess(cmd, syscall.SIGTERM, 30*time.Millisecond)
	if !killProcess(cmd, syscall.SIGKILL, time.Second) && !success {
		log.Error("Failed to kill inferior process")
	}
	e.removeProcess(cmd)
}

func (e *Executor) addProcess(cmd *exec.Cmd) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.processes[cmd] = struct{}{}
}

func (e *Executor) removeProcess(cmd *exec.Cmd) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.processes, cmd)
}

// killProcess implements the two-step killing of processes with a SIGTERM and a SIGKILL if
// that's unsuccessful. It returns true if the process group went away within the timeout.
func killProcess(cmd *exec.Cmd, sig syscall.Signal, timeout time.Duration) bool {
	if cmd.Process == nil {
		log.Debug("Not terminating process, it seems to have not started yet")
		return false
	}
	pid := cmd.Process.Pid
	log.Debug("Sending signal %s to -%d", sig, pid)
	syscall.Kill(-pid, sig) // Kill the group - we always set one in ExecCommand.
	// The owning Run call is already in cmd.Wait, so poll for the group disappearing instead.
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(-pid, 0); err != nil {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// killAll kills all subprocesses of this executor.
func (e *Executor) killAll() {
	e.mutex.Lock()
	processes := make([]*exec.Cmd, 0, len(e.processes))
	for proc := range e.processes {
		processes = append(processes, proc)
	}
	e.mutex.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(processes))
	for _, proc := range processes {
		go func(proc *exec.Cmd) {
			defer wg.Done()
			e.KillProcess(proc)
		}(proc)
	}
	wg.Wait()
}
