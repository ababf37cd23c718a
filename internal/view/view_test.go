package view

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/your-org/bot-dashboard/internal/backend"
	"github.com/your-org/bot-dashboard/internal/profile"
)

func TestRenderers_ImplementRenderer(t *testing.T) {
	assert.Implements(t, (*Renderer)(nil), new(Board))
	assert.Implements(t, (*Renderer)(nil), new(LogRenderer))
	assert.Implements(t, (*Renderer)(nil), Fanout{})
}

func TestBoard(t *testing.T) {
	b := NewBoard(2)

	_, ok := b.Get(Price)
	assert.False(t, ok)

	ticker := &backend.Ticker{Symbol: "BTC/USDT:USDT", Price: decimal.NewNullDecimal(decimal.NewFromInt(64000))}
	b.RenderPrice(ticker)
	b.RenderPrice(ticker)
	b.RenderLogs(&backend.Logs{Lines: []string{"a", "b", "c"}})
	b.RenderParamPanel("rsi", []string{"period", "overbought", "oversold"})

	e, ok := b.Get(Price)
	require.True(t, ok)
	assert.Equal(t, ticker, e.Data)
	assert.EqualValues(t, 2, e.Renders)
	assert.False(t, e.UpdatedAt.IsZero())

	e, ok = b.Get(Logs)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "c"}, e.Data.(*backend.Logs).Lines, "log tail is capped")

	e, _ = b.Get(ParamPanel)
	assert.Equal(t, ParamPanelView{Strategy: "rsi", Visible: []string{"period", "overbought", "oversold"}}, e.Data)

	assert.Equal(t, []string{Logs, ParamPanel, Price}, b.Names())
	assert.Len(t, b.Snapshot(), 3)
}

func TestFanout(t *testing.T) {
	a, b := NewBoard(0), NewBoard(0)
	f := Fanout{a, b}

	f.RenderWeights(profile.Weights{SMA: 10, EMA: 30, RSI: 0, MACD: 60})
	f.RenderChart("ETH/USDT:USDT", "60")

	for _, board := range []*Board{a, b} {
		e, ok := board.Get(Weights)
		require.True(t, ok)
		assert.Equal(t, profile.Weights{SMA: 10, EMA: 30, RSI: 0, MACD: 60}, e.Data)
		e, ok = board.Get(Chart)
		require.True(t, ok)
		assert.Equal(t, ChartView{Symbol: "ETH/USDT:USDT", Interval: "60"}, e.Data)
	}
}

func TestLogRenderer_LogsChangesOnly(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewLogRenderer(zap.New(core))

	r.RenderHistory(&backend.History{Count: 3})
	r.RenderHistory(&backend.History{Count: 3})
	r.RenderHistory(&backend.History{Count: 4})
	assert.Equal(t, 2, logs.FilterMessage("Trade history").Len())

	r.RenderHealth(backend.Health{"ticker": backend.HealthOK, "db": backend.HealthErr})
	r.RenderHealth(backend.Health{"ticker": backend.HealthOK, "db": backend.HealthWarn})
	assert.Equal(t, 1, logs.FilterMessage("Subsystem healthy").Len())
	assert.Equal(t, 1, logs.FilterMessage("Subsystem failing").Len())
	assert.Equal(t, 1, logs.FilterMessage("Subsystem degraded").Len())

	r.RenderStatus(&backend.Status{Position: &backend.Position{Side: "long"}})
	r.RenderStatus(&backend.Status{Position: &backend.Position{Side: "long"}})
	r.RenderStatus(&backend.Status{})
	assert.Equal(t, 1, logs.FilterMessage("Position").Len())
	assert.Equal(t, 1, logs.FilterMessage("Position closed").Len())

	assert.NotPanics(t, func() {
		r.RenderPrice(nil)
		r.RenderStatus(nil)
		r.RenderLogs(nil)
		r.RenderMetrics(nil)
		r.RenderPortfolio(nil)
		r.RenderBacktest(nil)
	})
}
