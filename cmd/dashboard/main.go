// Package main is the entry point of the bot dashboard daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/your-org/bot-dashboard/internal/alert"
	"github.com/your-org/bot-dashboard/internal/backend"
	"github.com/your-org/bot-dashboard/internal/config"
	"github.com/your-org/bot-dashboard/internal/http/handler"
	"github.com/your-org/bot-dashboard/internal/livesync"
	"github.com/your-org/bot-dashboard/internal/profile"
	"github.com/your-org/bot-dashboard/internal/profile/draft"
	"github.com/your-org/bot-dashboard/internal/push"
	"github.com/your-org/bot-dashboard/internal/slot"
	"github.com/your-org/bot-dashboard/internal/view"
	"github.com/your-org/bot-dashboard/pkg/logger"
)

func main() {
	// --- Configuration ---
	configPath := flag.String("config", "config/dashboard.yaml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	base, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	session := uuid.NewString()
	log := base.With(zap.String("session", session))
	logger.ReplaceGlobal(log)
	logger.Info("Bot dashboard starting...")
	logger.Infof("Loaded configuration from: %s", *configPath)
	logger.Infof("Mirroring backend: %s", cfg.Backend.BaseURL)

	err = run(cfg, session, log)
	if syncErr := logger.Sync(); syncErr != nil && !errors.Is(syncErr, syscall.EINVAL) && !errors.Is(syncErr, syscall.ENOTTY) {
		// We can't use the logger here because it's being synced.
		fmt.Fprintf(os.Stderr, "Failed to sync zap logger: %v\n", syncErr)
	}
	if err != nil {
		logger.Errorf("Dashboard exited with error: %v", err)
		os.Exit(1)
	}
	logger.Info("Bot dashboard shut down gracefully.")
}

func run(cfg *config.Config, session string, log *zap.Logger) (err error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Profile slot ---
	store, err := slot.Open(ctx, slot.Options{
		Kind: cfg.Profile.Store,
		Path: cfg.Profile.Path,
		DSN:  cfg.Profile.DSN,
	}, log.Named("slot"))
	if err != nil {
		return fmt.Errorf("open profile slot: %w", err)
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	// --- Backend and views ---
	api := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout.Duration()),
		backend.WithSession(session),
	)
	board := view.NewBoard(cfg.Views.LogLines)
	renderer := view.Fanout{board, view.NewLogRenderer(log.Named("view"))}

	form := profile.NewForm()
	form.Seed(map[string]string{
		"api_key":    cfg.APIKey,
		"api_secret": cfg.APISecret,
	})
	profiles := profile.NewStore(form, store, log.Named("profile"),
		profile.WithAutosaveWindow(cfg.Profile.Autosave.Duration()))

	notifier := alert.Multi{alert.NewLogNotifier(log.Named("alert"))}
	if cfg.Alert.Discord.Enabled() {
		discord, err := alert.NewDiscordNotifier(cfg.Alert.Discord, log.Named("alert"))
		if err != nil {
			return fmt.Errorf("discord notifier: %w", err)
		}
		notifier = append(notifier, discord)
	}
	defer func() { err = multierr.Append(err, notifier.Close()) }()

	orch := livesync.New(livesync.Deps{
		API:       api,
		Store:     profiles,
		Renderer:  renderer,
		Notifier:  notifier,
		Transport: newTransport(cfg, log.Named("push")),
		Logger:    log,
		Intervals: map[livesync.Key]time.Duration{
			livesync.KeyPrice:   cfg.Loops.Price.Duration(),
			livesync.KeyStatus:  cfg.Loops.Status.Duration(),
			livesync.KeyLogs:    cfg.Loops.Logs.Duration(),
			livesync.KeyHistory: cfg.Loops.History.Duration(),
			livesync.KeyHealth:  cfg.Loops.Health.Duration(),
		},
		HistoryLimit: cfg.Views.HistoryLimit,
	})
	defer orch.Close()

	// --- Signals ---
	// Registered before Start: an uncaught SIGUSR1 terminates the process.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)

	// --- Draft file (optional) ---
	if cfg.Profile.DraftFile != "" {
		w := draft.NewWatcher(cfg.Profile.DraftFile, form, log.Named("draft"))
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("Draft watcher stopped", zap.Error(err))
			}
		}()
	}

	// --- Control API ---
	srv := &http.Server{
		Addr:              cfg.Control.Listen,
		Handler:           handler.NewRouter(handler.NewDashboardHandler(orch, board, log.Named("http")), log.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		log.Info("Control API listening", zap.String("addr", cfg.Control.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	err = serve(ctx, func(ctx context.Context) {
		orch.Start(ctx)
		log.Info("Dashboard started")
	}, sigs, srvErr, orch, log)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return multierr.Append(err, srv.Shutdown(shutdownCtx))
}

// visibility is the part of the orchestrator driven by signals.
type visibility interface {
	SetVisibility(hidden bool)
}

// serve runs start in the background while signals are handled, then
// cancels start's context and waits for it to return.
func serve(ctx context.Context, start func(context.Context), sigs <-chan os.Signal, srvErr <-chan error, vis visibility, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := make(chan struct{})
	go func() {
		defer close(started)
		start(ctx)
	}()

	err := waitForShutdown(sigs, srvErr, vis, log)
	cancel()
	<-started
	return err
}

// waitForShutdown applies SIGUSR1 (hide) and SIGUSR2 (show) until a
// termination signal arrives or the control server fails.
func waitForShutdown(sigs <-chan os.Signal, srvErr <-chan error, vis visibility, log *zap.Logger) error {
	for {
		select {
		case sig := <-sigs:
			switch sig {
			case syscall.SIGUSR1:
				vis.SetVisibility(true)
			case syscall.SIGUSR2:
				vis.SetVisibility(false)
			default:
				log.Info("Received signal, initiating shutdown...", zap.String("signal", sig.String()))
				return nil
			}
		case err := <-srvErr:
			return fmt.Errorf("control api: %w", err)
		}
	}
}

// newTransport builds the push transport named by the configuration. A nil
// transport leaves the dashboard on polling alone.
func newTransport(cfg *config.Config, log *zap.Logger) push.Transport {
	base := strings.TrimRight(cfg.Backend.BaseURL, "/")
	switch cfg.Push.Transport {
	case "sse":
		return push.NewSSETransport(base+cfg.Push.Path, bool(cfg.Push.Reconnect), log)
	case "websocket":
		u := base + cfg.Push.Path
		switch {
		case strings.HasPrefix(u, "https://"):
			u = "wss://" + strings.TrimPrefix(u, "https://")
		case strings.HasPrefix(u, "http://"):
			u = "ws://" + strings.TrimPrefix(u, "http://")
		}
		return push.NewWebSocketTransport(u, log)
	default:
		return nil
	}
}
