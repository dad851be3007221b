package cli

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	exitHandlers     []func()
	exitHandlerMutex sync.Mutex
	signalsOnce      sync.Once
)

// AtExit registers a function to be run when the process is killed by a signal.
// It's best-effort; there are plenty of ways of exiting that bypass it.
func AtExit(f func()) {
	signalsOnce.Do(func() { go handleSignals() })
	exitHandlerMutex.Lock()
	defer exitHandlerMutex.Unlock()
	exitHandlers = append(exitHandlers, f)
}

// handleSignals waits for a terminating signal, runs the registered exit handlers and then
// exits the process. A second signal aborts immediately.
func handleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	sig := <-ch
	log.Info("Received signal %s", sig)
	done := make(chan struct{})
	go func() {
		runExitHandlers()
		close(done)
	}()
	select {
	case <-done:
		log.Info("All exit handlers run, shutting down")
	case sig = <-ch:
		log.Warning("Received second signal %s, aborting", sig)
	}
	exit(sig)
}

func runExitHandlers() {
	exitHandlerMutex.Lock()
	handlers := append([]func(){}, exitHandlers...)
	exitHandlerMutex.Unlock()
	for _, h := range handlers {
		h()
	}
}

// exit kills the process with an exit code suitable for the given signal.
func exit(sig os.Signal) {
	if s, ok := sig.(syscall.Signal); ok {
		os.Exit(128 + int(s))
	}
	os.Exit(1)
}
