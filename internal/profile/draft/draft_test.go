package draft

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/bot-dashboard/internal/profile"
)

func writeDraft(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWatcher_Apply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft.yaml")
	writeDraft(t, path, `
symbol: ETH/USDT:USDT
usd_per_trade: 75.5
dry_run: false
strategy: composite
params:
  period: 21
unknown_field: 1
`)

	form := profile.NewForm()
	var edited []string
	form.OnEdit(func(name, _ string) { edited = append(edited, name) })

	changed, err := NewWatcher(path, form, zap.NewNop()).Apply()
	require.NoError(t, err)

	// strategy already holds "composite" and unknown_field is skipped
	assert.Equal(t, []string{"dry_run", "period", "symbol", "usd_per_trade"}, changed)
	assert.Equal(t, changed, edited, "draft values arrive as user edits")

	v, _ := form.Value("usd_per_trade")
	assert.Equal(t, "75.5", v)
	v, _ = form.Value("dry_run")
	assert.Equal(t, "false", v)
}

func TestWatcher_ApplyMissingAndBroken(t *testing.T) {
	dir := t.TempDir()
	form := profile.NewForm()

	changed, err := NewWatcher(filepath.Join(dir, "none.yaml"), form, zap.NewNop()).Apply()
	assert.NoError(t, err)
	assert.Empty(t, changed)

	broken := filepath.Join(dir, "broken.yaml")
	writeDraft(t, broken, "symbol: [unterminated")
	_, err = NewWatcher(broken, form, zap.NewNop()).Apply()
	assert.Error(t, err)
}

func TestWatcher_RunFollowsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft.yaml")
	form := profile.NewForm()

	var mu sync.Mutex
	var lastTheme string
	form.OnEdit(func(name, value string) {
		if name == "theme" {
			mu.Lock()
			lastTheme = value
			mu.Unlock()
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWatcher(path, form, zap.NewNop()).Run(ctx) }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	writeDraft(t, path, "theme: light\n")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return lastTheme == "light"
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
