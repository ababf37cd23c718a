// Package profile holds the operator's strategy configuration: the editable
// form, the record collected from it, and its persistence in a slot.
package profile

import (
	"math"
	"sort"
	"strconv"
)

// SlotKey is the fixed key the profile is persisted under.
const SlotKey = "bingx_ui_profile_v1"

// Params are the strategy parameters. Which of them matter depends on the
// selected strategy.
type Params struct {
	TFFast     float64 `json:"tf_fast"`
	TFSlow     float64 `json:"tf_slow"`
	TrendFast  float64 `json:"trend_fast"`
	TrendSlow  float64 `json:"trend_slow"`
	Period     float64 `json:"period"`
	Overbought float64 `json:"overbought"`
	Oversold   float64 `json:"oversold"`
	Fast       float64 `json:"fast"`
	Slow       float64 `json:"slow"`
	Signal     float64 `json:"signal"`
}

// Weights are the composite strategy weights as integer percentages summing
// to 100.
type Weights struct {
	SMA  int `json:"sma"`
	EMA  int `json:"ema"`
	RSI  int `json:"rsi"`
	MACD int `json:"macd"`
}

// Record is the full configuration snapshot sent to the backend's run and
// backtest endpoints and persisted between sessions.
type Record struct {
	Symbol              string `json:"symbol"`
	Timeframe           string `json:"timeframe"`
	TrendTF             string `json:"trend_tf"`
	Strategy            string `json:"strategy"`
	ExchangeID          string `json:"exchange_id"`
	SecondaryExchangeID string `json:"secondary_exchange_id"`
	APIKey              string `json:"api_key"`
	APISecret           string `json:"api_secret"`
	SecondaryAPIKey     string `json:"secondary_api_key"`
	SecondaryAPISecret  string `json:"secondary_api_secret"`
	Profile             string `json:"profile"`

	USDPerTrade  float64 `json:"usd_per_trade"`
	Sleep        float64 `json:"sleep"`
	Lookback     float64 `json:"lookback"`
	BTCash       float64 `json:"bt_cash"`
	FeeTaker     float64 `json:"fee_taker"`
	SlippagePct  float64 `json:"slippage_pct"`
	DailyLossPct float64 `json:"daily_loss_pct"`
	MaxPositions float64 `json:"max_positions"`
	CooldownSec  float64 `json:"cooldown_sec"`
	MaxATRPct    float64 `json:"max_atr_pct"`
	MinVolume    float64 `json:"min_volume"`

	PSMode       string  `json:"ps_mode"`
	PSValue      float64 `json:"ps_value"`
	OrderType    string  `json:"order_type"`
	TIF          string  `json:"tif"`
	SessionStart string  `json:"session_start"`
	SessionEnd   string  `json:"session_end"`

	DryRun     bool `json:"dry_run"`
	Loop       bool `json:"loop"`
	PostOnly   bool `json:"post_only"`
	ReduceOnly bool `json:"reduce_only"`

	Params Params `json:"params"`

	WSMA  float64 `json:"w_sma"`
	WEMA  float64 `json:"w_ema"`
	WRSI  float64 `json:"w_rsi"`
	WMACD float64 `json:"w_macd"`

	Weights Weights `json:"weights"`

	ChartInterval string `json:"chart_interval"`
	Theme         string `json:"theme"`

	CreatedAt int64 `json:"created_at"`
}

// DefaultRecord returns the record a fresh form collects to.
func DefaultRecord() Record {
	r := Record{
		Symbol:     "BTC/USDT:USDT",
		Timeframe:  "15m",
		TrendTF:    "4h",
		Strategy:   "composite",
		ExchangeID: "bingx",
		Profile:    "paper",

		USDPerTrade:  50,
		Sleep:        30,
		Lookback:     500,
		BTCash:       10000,
		FeeTaker:     0.05,
		SlippagePct:  0.05,
		DailyLossPct: 3,
		MaxPositions: 1,
		CooldownSec:  60,

		PSMode:    "fixed",
		PSValue:   50,
		OrderType: "market",
		TIF:       "GTC",

		DryRun: true,
		Loop:   true,

		Params: Params{
			TFFast:     9,
			TFSlow:     21,
			TrendFast:  50,
			TrendSlow:  200,
			Period:     14,
			Overbought: 70,
			Oversold:   30,
			Fast:       12,
			Slow:       26,
			Signal:     9,
		},

		WSMA:  25,
		WEMA:  25,
		WRSI:  25,
		WMACD: 25,

		ChartInterval: "15",
		Theme:         "dark",
	}
	r.Weights = NormalizeWeights(r.WSMA, r.WEMA, r.WRSI, r.WMACD)
	return r
}

// textFields maps form field names to the record's string fields.
func (r *Record) textFields() map[string]*string {
	return map[string]*string{
		"symbol":                &r.Symbol,
		"timeframe":             &r.Timeframe,
		"trend_tf":              &r.TrendTF,
		"strategy":              &r.Strategy,
		"exchange_id":           &r.ExchangeID,
		"secondary_exchange_id": &r.SecondaryExchangeID,
		"api_key":               &r.APIKey,
		"api_secret":            &r.APISecret,
		"secondary_api_key":     &r.SecondaryAPIKey,
		"secondary_api_secret":  &r.SecondaryAPISecret,
		"profile":               &r.Profile,
		"ps_mode":               &r.PSMode,
		"order_type":            &r.OrderType,
		"tif":                   &r.TIF,
		"session_start":         &r.SessionStart,
		"session_end":           &r.SessionEnd,
		"chart_interval":        &r.ChartInterval,
		"theme":                 &r.Theme,
	}
}

// numberFields maps form field names to the record's numeric fields,
// strategy params included.
func (r *Record) numberFields() map[string]*float64 {
	return map[string]*float64{
		"usd_per_trade":  &r.USDPerTrade,
		"sleep":          &r.Sleep,
		"lookback":       &r.Lookback,
		"bt_cash":        &r.BTCash,
		"fee_taker":      &r.FeeTaker,
		"slippage_pct":   &r.SlippagePct,
		"daily_loss_pct": &r.DailyLossPct,
		"max_positions":  &r.MaxPositions,
		"cooldown_sec":   &r.CooldownSec,
		"max_atr_pct":    &r.MaxATRPct,
		"min_volume":     &r.MinVolume,
		"ps_value":       &r.PSValue,
		"w_sma":          &r.WSMA,
		"w_ema":          &r.WEMA,
		"w_rsi":          &r.WRSI,
		"w_macd":         &r.WMACD,
		"tf_fast":        &r.Params.TFFast,
		"tf_slow":        &r.Params.TFSlow,
		"trend_fast":     &r.Params.TrendFast,
		"trend_slow":     &r.Params.TrendSlow,
		"period":         &r.Params.Period,
		"overbought":     &r.Params.Overbought,
		"oversold":       &r.Params.Oversold,
		"fast":           &r.Params.Fast,
		"slow":           &r.Params.Slow,
		"signal":         &r.Params.Signal,
	}
}

func (r *Record) boolFields() map[string]*bool {
	return map[string]*bool{
		"dry_run":     &r.DryRun,
		"loop":        &r.Loop,
		"post_only":   &r.PostOnly,
		"reduce_only": &r.ReduceOnly,
	}
}

// FieldNames lists every form field a record is collected from, sorted.
func FieldNames() []string {
	var r Record
	names := make([]string, 0, 48)
	for name := range r.textFields() {
		names = append(names, name)
	}
	for name := range r.numberFields() {
		names = append(names, name)
	}
	for name := range r.boolFields() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// values renders the record as raw form values.
func (r *Record) values() map[string]string {
	out := make(map[string]string, 48)
	for name, p := range r.textFields() {
		out[name] = *p
	}
	for name, p := range r.numberFields() {
		out[name] = strconv.FormatFloat(*p, 'f', -1, 64)
	}
	for name, p := range r.boolFields() {
		out[name] = strconv.FormatBool(*p)
	}
	return out
}

// parseNumber parses raw as a finite number.
func parseNumber(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseBool accepts the spellings a checkbox or a draft file may produce.
func parseBool(raw string) bool {
	switch raw {
	case "1", "t", "T", "true", "TRUE", "True", "on", "yes", "checked":
		return true
	}
	return false
}

// NormalizeWeights turns the raw weight inputs into integer percentages that
// sum to exactly 100. Negative or non-finite inputs count as zero; when
// nothing is left the weights are split evenly.
func NormalizeWeights(sma, ema, rsi, macd float64) Weights {
	raw := [4]float64{sma, ema, rsi, macd}
	var sum float64
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			raw[i] = 0
			continue
		}
		sum += v
	}
	if sum == 0 || math.IsInf(sum, 0) {
		return Weights{SMA: 25, EMA: 25, RSI: 25, MACD: 25}
	}

	var pct [4]int
	total, largest := 0, 0
	for i, v := range raw {
		pct[i] = int(math.Round(v / sum * 100))
		total += pct[i]
		if raw[i] > raw[largest] {
			largest = i
		}
	}
	// rounding drift goes to the largest weight
	pct[largest] += 100 - total

	return Weights{SMA: pct[0], EMA: pct[1], RSI: pct[2], MACD: pct[3]}
}
