package backend

import (
	"github.com/shopspring/decimal"
)

// StrategyDef describes one strategy offered by the backend.
type StrategyDef struct {
	Params []string `json:"params"`
}

// Strategies maps strategy name to its definition.
type Strategies map[string]StrategyDef

// Ticker is the response of the ticker endpoint.
type Ticker struct {
	Symbol string              `json:"symbol"`
	Price  decimal.NullDecimal `json:"price"`
	TS     int64               `json:"ts"`
}

// Balance is the account balance part of Status.
type Balance struct {
	Total decimal.NullDecimal `json:"total"`
}

// Position is the open position part of Status.
type Position struct {
	Side          string              `json:"side"`
	Size          decimal.NullDecimal `json:"size"`
	EntryPrice    decimal.NullDecimal `json:"entry_price"`
	MarkPrice     decimal.NullDecimal `json:"mark_price"`
	Leverage      decimal.NullDecimal `json:"leverage"`
	UnrealizedPnL decimal.NullDecimal `json:"unrealized_pnl"`
	ROE           decimal.NullDecimal `json:"roe"`
}

// Status is the bot's last emitted state.
type Status struct {
	DryRun   bool                `json:"dry_run"`
	Price    decimal.NullDecimal `json:"price"`
	Balance  *Balance            `json:"balance"`
	Position *Position           `json:"position"`
}

// Logs holds the tail of the bot's output.
type Logs struct {
	Lines []string `json:"lines"`
}

// HistoryItem is one recorded order.
type HistoryItem struct {
	TS         int64               `json:"ts"`
	Symbol     string              `json:"symbol"`
	Side       string              `json:"side"`
	Type       string              `json:"type"`
	Amount     decimal.NullDecimal `json:"amount"`
	Price      decimal.NullDecimal `json:"price"`
	TIF        string              `json:"tif"`
	ReduceOnly bool                `json:"reduce_only"`
	PostOnly   bool                `json:"post_only"`
	DryRun     bool                `json:"dry_run"`
	OK         bool                `json:"ok"`
}

// History is the response of the history endpoint.
type History struct {
	Items []HistoryItem `json:"items"`
	Count int           `json:"count"`
}

// HealthLevel is the normalized state of one backend subsystem.
type HealthLevel string

const (
	HealthOK   HealthLevel = "ok"
	HealthWarn HealthLevel = "warn"
	HealthErr  HealthLevel = "err"
)

// Health maps subsystem name to its level.
type Health map[string]HealthLevel

// ParseHealthLevel maps a raw backend value onto a HealthLevel.
// Anything other than "ok" or "warn" is an error.
func ParseHealthLevel(raw string) HealthLevel {
	switch HealthLevel(raw) {
	case HealthOK:
		return HealthOK
	case HealthWarn:
		return HealthWarn
	default:
		return HealthErr
	}
}

// Metrics is the runtime metrics summary of the bot.
type Metrics struct {
	OrderCount        int                 `json:"order_count"`
	OrderLatencyAvgMs decimal.NullDecimal `json:"order_latency_avg_ms"`
	OrderErrorRate    decimal.NullDecimal `json:"order_error_rate"`
	WSReconnects      int                 `json:"ws_reconnects"`
	PriceDriftAvg     decimal.NullDecimal `json:"price_drift_avg"`
	EquityDrawdown    decimal.NullDecimal `json:"equity_drawdown"`
}

// PortfolioPosition is one configured portfolio weight.
type PortfolioPosition struct {
	Symbol      string          `json:"symbol"`
	Weight      decimal.Decimal `json:"weight"`
	MaxExposure decimal.Decimal `json:"max_exposure"`
}

// Portfolio is the response of the portfolio endpoint.
type Portfolio struct {
	Items []PortfolioPosition `json:"items"`
	Count int                 `json:"count"`
}

// BacktestSummary aggregates a backtest run.
type BacktestSummary struct {
	Trades      int             `json:"trades"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	Winrate     decimal.Decimal `json:"winrate"`
	NetPnL      decimal.Decimal `json:"net_pnl"`
	StartEquity decimal.Decimal `json:"start_equity"`
	FinalEquity decimal.Decimal `json:"final_equity"`
	MaxDrawdown decimal.Decimal `json:"max_drawdown"`
	Sharpe      decimal.Decimal `json:"sharpe"`
}

// BacktestTrade is one simulated round trip.
type BacktestTrade struct {
	EntryTS int64           `json:"entry_ts"`
	ExitTS  int64           `json:"exit_ts"`
	Side    string          `json:"side"`
	Entry   decimal.Decimal `json:"entry"`
	Exit    decimal.Decimal `json:"exit"`
	PnL     decimal.Decimal `json:"pnl"`
}

// BacktestResult is the response of the backtest endpoint.
type BacktestResult struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Summary BacktestSummary `json:"summary"`
	Trades  []BacktestTrade `json:"trades"`
}

// CommandResult is the response of run/stop/kill.
type CommandResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	PID   int    `json:"pid,omitempty"`
}
