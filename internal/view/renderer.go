// Package view receives refreshed backend data. The Board keeps the latest
// snapshot of every view, the LogRenderer reports changes through zap.
package view

import (
	"github.com/your-org/bot-dashboard/internal/backend"
	"github.com/your-org/bot-dashboard/internal/profile"
)

// View names.
const (
	Strategies = "strategies"
	ParamPanel = "params"
	Chart      = "chart"
	Weights    = "weights"
	Price      = "price"
	Status     = "status"
	Logs       = "logs"
	History    = "history"
	Health     = "health"
	Metrics    = "metrics"
	Portfolio  = "portfolio"
	Backtest   = "backtest"
)

// Renderer displays refreshed data. Implementations must be safe for
// concurrent use; refresh tasks for different views call in parallel.
type Renderer interface {
	RenderStrategies(s backend.Strategies)
	RenderParamPanel(strategy string, params []string)
	RenderChart(symbol, interval string)
	RenderWeights(w profile.Weights)
	RenderPrice(t *backend.Ticker)
	RenderStatus(s *backend.Status)
	RenderLogs(l *backend.Logs)
	RenderHistory(h *backend.History)
	RenderHealth(h backend.Health)
	RenderMetrics(m *backend.Metrics)
	RenderPortfolio(p *backend.Portfolio)
	RenderBacktest(r *backend.BacktestResult)
}

// Fanout forwards every call to each renderer in order.
type Fanout []Renderer

func (f Fanout) RenderStrategies(s backend.Strategies) {
	for _, r := range f {
		r.RenderStrategies(s)
	}
}

func (f Fanout) RenderParamPanel(strategy string, params []string) {
	for _, r := range f {
		r.RenderParamPanel(strategy, params)
	}
}

func (f Fanout) RenderChart(symbol, interval string) {
	for _, r := range f {
		r.RenderChart(symbol, interval)
	}
}

func (f Fanout) RenderWeights(w profile.Weights) {
	for _, r := range f {
		r.RenderWeights(w)
	}
}

func (f Fanout) RenderPrice(t *backend.Ticker) {
	for _, r := range f {
		r.RenderPrice(t)
	}
}

func (f Fanout) RenderStatus(s *backend.Status) {
	for _, r := range f {
		r.RenderStatus(s)
	}
}

func (f Fanout) RenderLogs(l *backend.Logs) {
	for _, r := range f {
		r.RenderLogs(l)
	}
}

func (f Fanout) RenderHistory(h *backend.History) {
	for _, r := range f {
		r.RenderHistory(h)
	}
}

func (f Fanout) RenderHealth(h backend.Health) {
	for _, r := range f {
		r.RenderHealth(h)
	}
}

func (f Fanout) RenderMetrics(m *backend.Metrics) {
	for _, r := range f {
		r.RenderMetrics(m)
	}
}

func (f Fanout) RenderPortfolio(p *backend.Portfolio) {
	for _, r := range f {
		r.RenderPortfolio(p)
	}
}

func (f Fanout) RenderBacktest(res *backend.BacktestResult) {
	for _, r := range f {
		r.RenderBacktest(res)
	}
}
