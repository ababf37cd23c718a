package livesync

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/bot-dashboard/internal/alert"
	"github.com/your-org/bot-dashboard/internal/backend"
	"github.com/your-org/bot-dashboard/internal/profile"
	"github.com/your-org/bot-dashboard/internal/push"
	"github.com/your-org/bot-dashboard/internal/view"
)

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	API       Backend
	Store     *profile.Store
	Renderer  view.Renderer
	Notifier  alert.Notifier
	Transport push.Transport // nil disables push
	Logger    *zap.Logger

	// Intervals overrides DefaultIntervals per key.
	Intervals    map[Key]time.Duration
	HistoryLimit int
	Registry     []RegistryOption
}

// TaskState describes one refresh task.
type TaskState struct {
	Key      Key           `json:"key"`
	Interval time.Duration `json:"interval"`
	Alive    bool          `json:"alive"`
	InFlight bool          `json:"in_flight"`
	Cycles   int64         `json:"cycles"`
	Triggers int64         `json:"triggers"`
	Failures int64         `json:"failures"`
}

// Orchestrator sequences dashboard startup, follows visibility and issues
// operator commands.
type Orchestrator struct {
	api       Backend
	store     *profile.Store
	form      *profile.Form
	renderer  view.Renderer
	notifier  alert.Notifier
	transport push.Transport
	logger    *zap.Logger

	registry *Registry
	views    *Views

	mu         sync.Mutex
	strategies backend.Strategies
	channel    *push.Channel

	// visMu guards hidden and is held across the matching registry change.
	visMu  sync.Mutex
	hidden bool
}

// New creates an Orchestrator. Nothing runs until Start.
func New(d Deps) *Orchestrator {
	if d.Notifier == nil {
		d.Notifier = alert.NewNoOpNotifier()
	}
	if d.HistoryLimit <= 0 {
		d.HistoryLimit = 500
	}
	o := &Orchestrator{
		api:       d.API,
		store:     d.Store,
		form:      d.Store.Form(),
		renderer:  d.Renderer,
		notifier:  d.Notifier,
		transport: d.Transport,
		logger:    d.Logger,
		registry:  NewRegistry(d.Logger.Named("loops"), d.Registry...),
	}
	o.views = NewViews(d.API, d.Renderer, o.symbol, d.HistoryLimit)

	for _, key := range CanonicalKeys {
		interval := DefaultIntervals[key]
		if v, ok := d.Intervals[key]; ok && v > 0 {
			interval = v
		}
		o.registry.Define(key, o.views.Work(key), interval)
	}

	o.store.SetHooks(profile.Hooks{
		ParamPanel:   o.showParams,
		ChartSync:    o.renderer.RenderChart,
		WeightLabels: o.renderer.RenderWeights,
	})
	return o
}

// Registry exposes the loop registry.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Store exposes the config store.
func (o *Orchestrator) Store() *profile.Store {
	return o.store
}

func (o *Orchestrator) symbol() string {
	v, _ := o.form.Value("symbol")
	return v
}

// Start runs the startup sequence. Each step is best effort; failures are
// logged and the next step runs.
func (o *Orchestrator) Start(ctx context.Context) {
	// 1. strategies and the default parameter panel
	o.loadStrategies(ctx)
	strategy, _ := o.form.Value("strategy")
	o.showParams(strategy)

	// 2. saved profile, or persist the defaults
	if rec := o.store.Load(ctx); rec != nil {
		o.store.Apply(rec)
		o.logger.Info("Saved profile applied", zap.String("symbol", rec.Symbol), zap.String("strategy", rec.Strategy))
	} else {
		o.store.Save(ctx)
	}

	// 3. listeners
	o.store.WireAutosave()
	o.form.OnEdit(o.onEdit)

	// 4. one synchronous refresh
	for _, key := range []Key{KeyPrice, KeyStatus, KeyLogs, KeyHistory} {
		if err := o.views.Work(key)(ctx); err != nil {
			o.logger.Debug("Initial refresh failed", zap.String("task", string(key)), zap.Error(err))
		}
	}
	o.refreshPortfolio(ctx)

	// 5. loops
	o.visMu.Lock()
	if !o.hidden {
		o.registry.ResumeAll()
	}
	o.visMu.Unlock()

	// 6. push
	ch := push.Open(ctx, o.transport, o, o.logger.Named("push"))
	o.mu.Lock()
	o.channel = ch
	o.mu.Unlock()
}

func (o *Orchestrator) loadStrategies(ctx context.Context) {
	s, err := o.api.Strategies(ctx)
	if err != nil {
		o.logger.Warn("Failed to load strategies", zap.Error(err))
		return
	}
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	o.mu.Lock()
	o.strategies = s
	o.mu.Unlock()
	o.form.SetStrategyOptions(names)
	o.renderer.RenderStrategies(s)
}

// showParams renders the parameter panel for strategy.
func (o *Orchestrator) showParams(strategy string) {
	o.mu.Lock()
	params := o.strategies[strategy].Params
	o.mu.Unlock()
	o.renderer.RenderParamPanel(strategy, params)
}

func (o *Orchestrator) onEdit(name, value string) {
	switch name {
	case "strategy":
		o.showParams(value)
	case "symbol", "chart_interval":
		symbol, _ := o.form.Value("symbol")
		interval, _ := o.form.Value("chart_interval")
		o.renderer.RenderChart(symbol, interval)
		if name == "symbol" {
			o.registry.Trigger(KeyPrice)
		}
	case "w_sma", "w_ema", "w_rsi", "w_macd":
		o.renderer.RenderWeights(o.store.Collect().Weights)
	}
}

// TriggerView accelerates the refresh of a view named by the push channel.
func (o *Orchestrator) TriggerView(name string) {
	o.registry.Trigger(Key(name))
}

// SetVisibility pauses every loop when hidden and resumes them when shown.
// Repeated states are applied again.
func (o *Orchestrator) SetVisibility(hidden bool) {
	o.visMu.Lock()
	defer o.visMu.Unlock()
	o.hidden = hidden
	if hidden {
		o.logger.Info("Dashboard hidden, pausing refresh loops")
		o.registry.PauseAll()
		return
	}
	o.logger.Info("Dashboard visible, resuming refresh loops")
	o.registry.ResumeAll()
}

// Hidden reports the last visibility state.
func (o *Orchestrator) Hidden() bool {
	o.visMu.Lock()
	defer o.visMu.Unlock()
	return o.hidden
}

// Tasks describes every running refresh task.
func (o *Orchestrator) Tasks() []TaskState {
	keys := o.registry.Keys()
	out := make([]TaskState, 0, len(keys))
	for _, key := range keys {
		h, ok := o.registry.Handle(key)
		if !ok {
			continue
		}
		out = append(out, TaskState{
			Key:      key,
			Interval: h.Interval(),
			Alive:    h.Alive(),
			InFlight: h.InFlight(),
			Cycles:   h.Cycles(),
			Triggers: h.Triggers(),
			Failures: h.Failures(),
		})
	}
	return out
}

// PushChannel returns the open push channel, if any.
func (o *Orchestrator) PushChannel() *push.Channel {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.channel
}

// fail reports a command error to the operator.
func (o *Orchestrator) fail(command string, err error) error {
	var cmdErr *backend.CommandError
	if !errors.As(err, &cmdErr) && !errors.Is(err, context.Canceled) {
		err = &backend.CommandError{Command: command, Message: err.Error()}
	}
	o.logger.Warn("Command failed", zap.String("command", command), zap.Error(err))
	if sendErr := o.notifier.Send(err.Error()); sendErr != nil {
		o.logger.Warn("Failed to send alert", zap.Error(sendErr))
	}
	return err
}

func (o *Orchestrator) afterCommand() {
	o.registry.Trigger(KeyStatus)
	o.registry.Trigger(KeyLogs)
}

// Run starts the bot with the current configuration.
func (o *Orchestrator) Run(ctx context.Context) (*backend.CommandResult, error) {
	rec := o.store.Collect()
	res, err := o.api.Run(ctx, rec)
	if err != nil {
		return nil, o.fail("run", err)
	}
	o.logger.Info("Bot started", zap.Int("pid", res.PID), zap.String("symbol", rec.Symbol), zap.Bool("dry_run", rec.DryRun))
	o.afterCommand()
	return res, nil
}

// Stop stops the bot.
func (o *Orchestrator) Stop(ctx context.Context) (*backend.CommandResult, error) {
	res, err := o.api.Stop(ctx)
	if err != nil {
		return nil, o.fail("stop", err)
	}
	o.logger.Info("Bot stopped")
	o.afterCommand()
	return res, nil
}

// Kill stops the bot through the kill switch.
func (o *Orchestrator) Kill(ctx context.Context) (*backend.CommandResult, error) {
	res, err := o.api.Kill(ctx)
	if err != nil {
		return nil, o.fail("kill", err)
	}
	o.logger.Warn("Kill switch engaged")
	o.afterCommand()
	return res, nil
}

// Backtest runs a backtest of the current configuration. Non-positive bars
// or cash take the configured lookback and backtest cash.
func (o *Orchestrator) Backtest(ctx context.Context, bars int, cash float64) (*backend.BacktestResult, error) {
	rec := o.store.Collect()
	if bars <= 0 {
		bars = int(rec.Lookback)
	}
	if cash <= 0 {
		cash = rec.BTCash
	}
	res, err := o.api.Backtest(ctx, rec, bars, cash)
	if err != nil {
		return nil, o.fail("backtest", err)
	}
	o.renderer.RenderBacktest(res)
	return res, nil
}

// ClearHistory deletes the backend's trade history and refreshes the view.
func (o *Orchestrator) ClearHistory(ctx context.Context) error {
	if err := o.api.ClearHistory(ctx); err != nil {
		return o.fail("clear history", err)
	}
	o.registry.Trigger(KeyHistory)
	return nil
}

// SetPortfolio adds or replaces a portfolio position and refreshes the
// portfolio view.
func (o *Orchestrator) SetPortfolio(ctx context.Context, pos backend.PortfolioPosition) error {
	if err := o.api.SetPortfolio(ctx, pos); err != nil {
		return o.fail("set portfolio", err)
	}
	o.refreshPortfolio(ctx)
	return nil
}

// DeletePortfolio removes the position for symbol and refreshes the
// portfolio view.
func (o *Orchestrator) DeletePortfolio(ctx context.Context, symbol string) error {
	if err := o.api.DeletePortfolio(ctx, symbol); err != nil {
		return o.fail("delete portfolio", err)
	}
	o.refreshPortfolio(ctx)
	return nil
}

func (o *Orchestrator) refreshPortfolio(ctx context.Context) {
	if err := o.views.Portfolio(ctx); err != nil {
		o.logger.Debug("Portfolio unavailable", zap.Error(err))
	}
}

// Close stops push, the loops and flushes a pending autosave.
func (o *Orchestrator) Close() {
	if ch := o.PushChannel(); ch != nil {
		ch.Close()
	}
	o.registry.Close()
	o.store.Close()
}
