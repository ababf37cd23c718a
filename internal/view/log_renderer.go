package view

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/your-org/bot-dashboard/internal/backend"
	"github.com/your-org/bot-dashboard/internal/profile"
)

// LogRenderer writes view changes to a zap logger. Unchanged values are not
// repeated.
type LogRenderer struct {
	logger *zap.Logger

	mu          sync.Mutex
	lastPrice   string
	lastSide    string
	lastHistory int
	lastLogLine string
	lastHealth  map[string]backend.HealthLevel
}

// NewLogRenderer creates a LogRenderer.
func NewLogRenderer(logger *zap.Logger) *LogRenderer {
	return &LogRenderer{logger: logger, lastHistory: -1}
}

func (r *LogRenderer) RenderStrategies(s backend.Strategies) {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	r.logger.Info("Strategies loaded", zap.Strings("strategies", names))
}

func (r *LogRenderer) RenderParamPanel(strategy string, params []string) {
	r.logger.Debug("Parameter panel", zap.String("strategy", strategy), zap.Strings("visible", params))
}

func (r *LogRenderer) RenderChart(symbol, interval string) {
	r.logger.Debug("Chart target", zap.String("symbol", symbol), zap.String("interval", interval))
}

func (r *LogRenderer) RenderWeights(w profile.Weights) {
	r.logger.Debug("Composite weights",
		zap.Int("sma", w.SMA), zap.Int("ema", w.EMA), zap.Int("rsi", w.RSI), zap.Int("macd", w.MACD))
}

func (r *LogRenderer) RenderPrice(t *backend.Ticker) {
	if t == nil || !t.Price.Valid {
		return
	}
	price := t.Price.Decimal.String()
	r.mu.Lock()
	changed := price != r.lastPrice
	r.lastPrice = price
	r.mu.Unlock()
	if changed {
		r.logger.Debug("Price", zap.String("symbol", t.Symbol), zap.String("price", price))
	}
}

func (r *LogRenderer) RenderStatus(s *backend.Status) {
	if s == nil {
		return
	}
	side := ""
	if s.Position != nil {
		side = s.Position.Side
	}
	r.mu.Lock()
	changed := side != r.lastSide
	r.lastSide = side
	r.mu.Unlock()
	if !changed {
		return
	}
	if s.Position == nil {
		r.logger.Info("Position closed", zap.Bool("dry_run", s.DryRun))
		return
	}
	r.logger.Info("Position",
		zap.String("side", s.Position.Side),
		zap.String("size", s.Position.Size.Decimal.String()),
		zap.String("entry", s.Position.EntryPrice.Decimal.String()),
		zap.Bool("dry_run", s.DryRun))
}

func (r *LogRenderer) RenderLogs(l *backend.Logs) {
	if l == nil || len(l.Lines) == 0 {
		return
	}
	last := l.Lines[len(l.Lines)-1]
	r.mu.Lock()
	changed := last != r.lastLogLine
	r.lastLogLine = last
	r.mu.Unlock()
	if changed {
		r.logger.Debug("Bot output", zap.String("line", last))
	}
}

func (r *LogRenderer) RenderHistory(h *backend.History) {
	if h == nil {
		return
	}
	r.mu.Lock()
	changed := h.Count != r.lastHistory
	r.lastHistory = h.Count
	r.mu.Unlock()
	if changed {
		r.logger.Info("Trade history", zap.Int("count", h.Count))
	}
}

func (r *LogRenderer) RenderHealth(h backend.Health) {
	r.mu.Lock()
	prev := r.lastHealth
	r.lastHealth = h
	r.mu.Unlock()
	for name, level := range h {
		if prev != nil && prev[name] == level {
			continue
		}
		switch level {
		case backend.HealthOK:
			r.logger.Info("Subsystem healthy", zap.String("subsystem", name))
		case backend.HealthWarn:
			r.logger.Warn("Subsystem degraded", zap.String("subsystem", name))
		default:
			r.logger.Error("Subsystem failing", zap.String("subsystem", name))
		}
	}
}

func (r *LogRenderer) RenderMetrics(m *backend.Metrics) {
	if m == nil {
		return
	}
	r.logger.Debug("Metrics",
		zap.Int("orders", m.OrderCount),
		zap.Int("ws_reconnects", m.WSReconnects),
		zap.String("error_rate", m.OrderErrorRate.Decimal.String()))
}

func (r *LogRenderer) RenderPortfolio(p *backend.Portfolio) {
	if p == nil {
		return
	}
	r.logger.Info("Portfolio", zap.Int("positions", p.Count))
}

func (r *LogRenderer) RenderBacktest(res *backend.BacktestResult) {
	if res == nil {
		return
	}
	s := res.Summary
	r.logger.Info("Backtest finished",
		zap.Int("trades", s.Trades),
		zap.String("winrate", s.Winrate.String()),
		zap.String("net_pnl", s.NetPnL.String()),
		zap.String("final_equity", s.FinalEquity.String()),
		zap.String("max_drawdown", s.MaxDrawdown.String()))
}
