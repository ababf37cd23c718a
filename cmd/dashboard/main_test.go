package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/bot-dashboard/internal/config"
	"github.com/your-org/bot-dashboard/internal/push"
)

type recordingVisibility struct {
	mu    sync.Mutex
	calls []bool
}

func (r *recordingVisibility) SetVisibility(hidden bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, hidden)
}

func (r *recordingVisibility) Calls() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.calls...)
}

func TestWaitForShutdown_VisibilitySignals(t *testing.T) {
	sigs := make(chan os.Signal, 3)
	vis := &recordingVisibility{}

	sigs <- syscall.SIGUSR1
	sigs <- syscall.SIGUSR2
	sigs <- syscall.SIGTERM

	err := waitForShutdown(sigs, make(chan error), vis, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, vis.Calls())
}

func TestServe_HandlesSignalsWhileStartupBlocks(t *testing.T) {
	sigs := make(chan os.Signal, 1)
	vis := &recordingVisibility{}

	// startup blocks until cancelled, as with a backend that never answers
	startCancelled := make(chan struct{})
	start := func(ctx context.Context) {
		<-ctx.Done()
		close(startCancelled)
	}

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), start, sigs, make(chan error), vis, zap.NewNop()) }()

	sigs <- syscall.SIGUSR1
	require.Eventually(t, func() bool { return len(vis.Calls()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []bool{true}, vis.Calls(), "SIGUSR1 hides the dashboard during startup")

	sigs <- syscall.SIGTERM
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown signal was not handled")
	}
	select {
	case <-startCancelled:
	default:
		t.Fatal("serve returned before startup was cancelled")
	}
}

func TestWaitForShutdown_ServerError(t *testing.T) {
	srvErr := make(chan error, 1)
	srvErr <- errors.New("address already in use")

	err := waitForShutdown(make(chan os.Signal), srvErr, &recordingVisibility{}, zap.NewNop())
	assert.ErrorContains(t, err, "control api: address already in use")
}

func TestNewTransport(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.BaseURL = "https://bot.example:5000/"

	cfg.Push.Transport = "sse"
	_, ok := newTransport(cfg, zap.NewNop()).(*push.SSETransport)
	assert.True(t, ok)

	cfg.Push.Transport = "websocket"
	_, ok = newTransport(cfg, zap.NewNop()).(*push.WebSocketTransport)
	assert.True(t, ok)

	cfg.Push.Transport = "none"
	assert.Nil(t, newTransport(cfg, zap.NewNop()))
}
