package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var atexitHandlers []func()
var interruptHandlers []func()
var handlerMutex sync.Mutex

func init() {
	go handleSignals()
}

// handleSignals waits until it receives a terminating signal from the OS.
// If anything has registered with AtInterrupt, those are run first and we wait for a second
// signal, giving in-flight work the chance to unwind cleanly. Then it executes any functions
// previously registered with AtExit, and exits the process.
func handleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGABRT, syscall.SIGTERM)
	sig := <-ch
	log.Info("Received signal %s", sig)
	if interrupts := handlers(&interruptHandlers); len(interrupts) > 0 {
		for _, h := range interrupts {
			h()
		}
		log.Notice("Interrupted, waiting for running processes to stop. Send the signal again to abort.")
		sig = <-ch
		log.Warning("Received second signal %s, aborting", sig)
	}
	// Allow another signal to terminate the process regardless
	done := make(chan bool)
	go func() {
		for _, h := range handlers(&atexitHandlers) {
			h()
		}
		close(done)
	}()
	select {
	case <-done:
		log.Info("All exit handlers run, shutting down process")
		exit(sig)
	case sig := <-ch:
		log.Warning("Received another signal %s, aborting", sig)
		exit(sig)
	}
}

func handlers(hs *[]func()) []func() {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	return append([]func(){}, *hs...)
}

// AtExit registers a function to be run when the process is killed by a signal.
// Note that this is best-effort; we cannot guarantee that there are not other ways of exiting that
// bypass any mechanism we use here.
func AtExit(f func()) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	atexitHandlers = append(atexitHandlers, f)
}

// AtInterrupt registers a function to be run on the first terminating signal, before the
// process exits on a subsequent one.
func AtInterrupt(f func()) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	interruptHandlers = append(interruptHandlers, f)
}

// CancelOnInterrupt returns a context that is cancelled when the process receives a terminating signal.
func CancelOnInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	AtInterrupt(cancel)
	return ctx, cancel
}

// ExitCodeForSignal returns the conventional exit code for a process terminated by the given signal.
func ExitCodeForSignal(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}

// exit kills the process with an exit code suitable for the given signal.
func exit(sig os.Signal) {
	os.Exit(ExitCodeForSignal(sig))
}
