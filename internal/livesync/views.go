package livesync

import (
	"context"

	"go.uber.org/multierr"

	"github.com/your-org/bot-dashboard/internal/backend"
	"github.com/your-org/bot-dashboard/internal/view"
)

// Backend is the part of the backend client the dashboard uses.
type Backend interface {
	Strategies(ctx context.Context) (backend.Strategies, error)
	Ticker(ctx context.Context, symbol string) (*backend.Ticker, error)
	Status(ctx context.Context) (*backend.Status, error)
	Logs(ctx context.Context) (*backend.Logs, error)
	History(ctx context.Context, limit int) (*backend.History, error)
	Health(ctx context.Context) (backend.Health, error)
	Metrics(ctx context.Context) (*backend.Metrics, error)
	Portfolio(ctx context.Context) (*backend.Portfolio, error)
	SetPortfolio(ctx context.Context, pos backend.PortfolioPosition) error
	DeletePortfolio(ctx context.Context, symbol string) error

	Run(ctx context.Context, record interface{}) (*backend.CommandResult, error)
	Stop(ctx context.Context) (*backend.CommandResult, error)
	Kill(ctx context.Context) (*backend.CommandResult, error)
	ClearHistory(ctx context.Context) error
	Backtest(ctx context.Context, record interface{}, bars int, cash float64) (*backend.BacktestResult, error)
}

var _ Backend = (*backend.Client)(nil)

// Views binds each refresh task to its endpoint and renderer call. Results
// that arrive after the cycle was cancelled are dropped.
type Views struct {
	api          Backend
	renderer     view.Renderer
	symbol       func() string
	historyLimit int
}

// NewViews creates the view bindings. symbol supplies the ticker symbol at
// the time of each fetch.
func NewViews(api Backend, renderer view.Renderer, symbol func() string, historyLimit int) *Views {
	return &Views{api: api, renderer: renderer, symbol: symbol, historyLimit: historyLimit}
}

// Work returns the unit of work for key, or nil for an unknown key.
func (v *Views) Work(key Key) Work {
	switch key {
	case KeyPrice:
		return v.Price
	case KeyStatus:
		return v.Status
	case KeyLogs:
		return v.Logs
	case KeyHistory:
		return v.History
	case KeyHealth:
		return v.Health
	default:
		return nil
	}
}

func (v *Views) Price(ctx context.Context) error {
	t, err := v.api.Ticker(ctx, v.symbol())
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	v.renderer.RenderPrice(t)
	return nil
}

func (v *Views) Status(ctx context.Context) error {
	s, err := v.api.Status(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	v.renderer.RenderStatus(s)
	return nil
}

func (v *Views) Logs(ctx context.Context) error {
	l, err := v.api.Logs(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	v.renderer.RenderLogs(l)
	return nil
}

func (v *Views) History(ctx context.Context) error {
	h, err := v.api.History(ctx, v.historyLimit)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	v.renderer.RenderHistory(h)
	return nil
}

// Health refreshes the subsystem health and, alongside it, the runtime
// metrics. Either may fail without blocking the other.
func (v *Views) Health(ctx context.Context) error {
	var errs error
	h, err := v.api.Health(ctx)
	if err == nil && ctx.Err() == nil {
		v.renderer.RenderHealth(h)
	}
	errs = multierr.Append(errs, err)

	m, err := v.api.Metrics(ctx)
	if err == nil && ctx.Err() == nil {
		v.renderer.RenderMetrics(m)
	}
	errs = multierr.Append(errs, err)
	return errs
}

// Portfolio fetches the configured portfolio. It runs at startup and after
// every portfolio edit.
func (v *Views) Portfolio(ctx context.Context) error {
	p, err := v.api.Portfolio(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	v.renderer.RenderPortfolio(p)
	return nil
}
