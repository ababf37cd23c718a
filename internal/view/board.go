package view

import (
	"sort"
	"sync"
	"time"

	"github.com/your-org/bot-dashboard/internal/backend"
	"github.com/your-org/bot-dashboard/internal/profile"
)

// Entry is the latest value of one view.
type Entry struct {
	Data      interface{} `json:"data"`
	UpdatedAt time.Time   `json:"updated_at"`
	Renders   int64       `json:"renders"`
}

// ParamPanelView is the strategy parameter panel state.
type ParamPanelView struct {
	Strategy string   `json:"strategy"`
	Visible  []string `json:"visible"`
}

// ChartView is the chart target.
type ChartView struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

// Board is an in-memory Renderer that keeps the last value of every view.
type Board struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	logLines int
	now      func() time.Time
}

// NewBoard creates a Board. logLines caps the retained log tail; zero keeps
// everything.
func NewBoard(logLines int) *Board {
	return &Board{
		entries:  make(map[string]*Entry),
		logLines: logLines,
		now:      time.Now,
	}
}

func (b *Board) set(name string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[name]
	if !ok {
		e = &Entry{}
		b.entries[name] = e
	}
	e.Data = data
	e.UpdatedAt = b.now()
	e.Renders++
}

// Get returns a copy of the named entry.
func (b *Board) Get(name string) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Names lists the views rendered so far, sorted.
func (b *Board) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.entries))
	for name := range b.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot copies every entry.
func (b *Board) Snapshot() map[string]Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]Entry, len(b.entries))
	for name, e := range b.entries {
		out[name] = *e
	}
	return out
}

func (b *Board) RenderStrategies(s backend.Strategies) { b.set(Strategies, s) }

func (b *Board) RenderParamPanel(strategy string, params []string) {
	b.set(ParamPanel, ParamPanelView{Strategy: strategy, Visible: append([]string(nil), params...)})
}

func (b *Board) RenderChart(symbol, interval string) {
	b.set(Chart, ChartView{Symbol: symbol, Interval: interval})
}

func (b *Board) RenderWeights(w profile.Weights)          { b.set(Weights, w) }
func (b *Board) RenderPrice(t *backend.Ticker)            { b.set(Price, t) }
func (b *Board) RenderStatus(s *backend.Status)           { b.set(Status, s) }
func (b *Board) RenderHistory(h *backend.History)         { b.set(History, h) }
func (b *Board) RenderHealth(h backend.Health)            { b.set(Health, h) }
func (b *Board) RenderMetrics(m *backend.Metrics)         { b.set(Metrics, m) }
func (b *Board) RenderPortfolio(p *backend.Portfolio)     { b.set(Portfolio, p) }
func (b *Board) RenderBacktest(r *backend.BacktestResult) { b.set(Backtest, r) }

// RenderLogs keeps at most logLines of the tail.
func (b *Board) RenderLogs(l *backend.Logs) {
	if l == nil {
		b.set(Logs, l)
		return
	}
	lines := l.Lines
	if b.logLines > 0 && len(lines) > b.logLines {
		lines = lines[len(lines)-b.logLines:]
	}
	b.set(Logs, &backend.Logs{Lines: append([]string(nil), lines...)})
}
