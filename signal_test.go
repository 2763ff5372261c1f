package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitDone(t *testing.T, ctx context.Context, what string) {
	t.Helper()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("context not cancelled within 2s of %s", what)
	}
}

func TestShutdownContext_SignalCancelsWithCause(t *testing.T) {
	ctx, stop := shutdownContext(context.Background(), discardLogger())
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
	waitDone(t, ctx, "SIGTERM")

	cause := context.Cause(ctx)
	assert.ErrorIs(t, cause, errInterrupted)
	assert.Contains(t, cause.Error(), "terminated")
}

func TestShutdownContext_FollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := shutdownContext(parent, discardLogger())
	defer stop()

	cancel()
	waitDone(t, ctx, "parent cancel")

	assert.NotErrorIs(t, context.Cause(ctx), errInterrupted)
}

func TestShutdownContext_StopIsNotAnInterrupt(t *testing.T) {
	ctx, stop := shutdownContext(context.Background(), discardLogger())

	stop()
	stop()
	waitDone(t, ctx, "stop")

	assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
	assert.NotErrorIs(t, context.Cause(ctx), errInterrupted)
}
