package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// exitInterrupted is the exit status after a second signal (128 + SIGINT).
const exitInterrupted = 130

// errInterrupted is the cancellation cause of a run stopped by a signal.
var errInterrupted = errors.New("interrupted")

// shutdownContext returns a run context for one command. The first
// SIGINT/SIGTERM cancels it with a cause wrapping errInterrupted: the request
// in flight is aborted, no further batch or table is started, and sheet ids
// gathered so far are still saved. A second signal exits at once. stop
// releases the signal handler and must be called when the run ends.
func shutdownContext(parent context.Context, logger *slog.Logger) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancelCause(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Warn("signal received, stopping after the request in flight",
				slog.String("signal", sig.String()),
			)
			cancel(fmt.Errorf("%w by %s", errInterrupted, sig))
		case <-ctx.Done():
			return
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Error("second signal received, exiting without saving",
				slog.String("signal", sig.String()),
			)
			os.Exit(exitInterrupted)
		case <-done:
		}
	}()

	var once sync.Once

	return ctx, func() {
		once.Do(func() {
			close(done)
			cancel(nil)
		})
	}
}
