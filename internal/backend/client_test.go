package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", WithSession("test-session")), server
}

func TestClient_Status(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/status", r.URL.Path)
		assert.Equal(t, "test-session", r.Header.Get("X-Dashboard-Session"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"dry_run":false,"price":64000.5,"balance":{"total":"1200.25"},
			"position":{"side":"long","size":0.01,"entry_price":63000,"mark_price":64000.5,
			"leverage":5,"unrealized_pnl":10,"roe":null}}`)
	})

	status, err := client.Status(context.Background())
	require.NoError(t, err)

	assert.False(t, status.DryRun)
	require.True(t, status.Price.Valid)
	assert.True(t, decimal.RequireFromString("64000.5").Equal(status.Price.Decimal))
	require.NotNil(t, status.Balance)
	assert.True(t, decimal.RequireFromString("1200.25").Equal(status.Balance.Total.Decimal))
	require.NotNil(t, status.Position)
	assert.Equal(t, "long", status.Position.Side)
	assert.False(t, status.Position.ROE.Valid, "null roe decodes as invalid")
}

func TestClient_StatusWithoutPosition(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"dry_run":true,"price":null,"balance":null,"position":null}`)
	})

	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.DryRun)
	assert.False(t, status.Price.Valid)
	assert.Nil(t, status.Balance)
	assert.Nil(t, status.Position)
}

func TestClient_TickerAndHistoryQuery(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/ticker":
			assert.Equal(t, "ETH/USDT:USDT", r.URL.Query().Get("symbol"))
			io.WriteString(w, `{"symbol":"ETH/USDT:USDT","price":3100.1,"ts":1700000000000}`)
		case "/api/history":
			assert.Equal(t, "500", r.URL.Query().Get("limit"))
			io.WriteString(w, `{"items":[{"ts":1,"symbol":"BTC/USDT:USDT","side":"buy","type":"market",
				"amount":0.001,"price":null,"tif":null,"reduce_only":false,"post_only":false,"dry_run":true,"ok":true}],"count":1}`)
		default:
			http.NotFound(w, r)
		}
	})

	ticker, err := client.Ticker(context.Background(), "ETH/USDT:USDT")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("3100.1").Equal(ticker.Price.Decimal))

	history, err := client.History(context.Background(), 500)
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
	assert.Equal(t, "buy", history.Items[0].Side)
	assert.False(t, history.Items[0].Price.Valid)
	assert.True(t, history.Items[0].OK)
}

func TestClient_Health(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ticker":"ok","status":"warn","logs":"err","history":"broken","db":1}`)
	})

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Health{
		"ticker":  HealthOK,
		"status":  HealthWarn,
		"logs":    HealthErr,
		"history": HealthErr,
		"db":      HealthErr,
	}, health)
}

func TestClient_BadStatus(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Logs(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestClient_MalformedJSON(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"lines": [`)
	})

	_, err := client.Logs(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadStatus)
}

func TestClient_CancelAbortsRequest(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.Status(ctx)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled request did not return")
	}
}

func TestClient_RunSendsRecord(t *testing.T) {
	var captured map[string]interface{}
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/run", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		io.WriteString(w, `{"ok":true,"pid":4242}`)
	})

	record := map[string]interface{}{"symbol": "BTC/USDT:USDT", "dry_run": true}
	res, err := client.Run(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, 4242, res.PID)
	assert.Equal(t, "BTC/USDT:USDT", captured["symbol"])
	assert.Equal(t, true, captured["dry_run"])
}

func TestClient_CommandErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"kill switch active", http.StatusForbidden, `{"ok":false,"error":"Global kill switch is active"}`, 403, "Global kill switch is active"},
		{"ok false with 200", http.StatusOK, `{"ok":false,"error":"busy"}`, 200, "busy"},
		{"plain text 500", http.StatusInternalServerError, "boom", 500, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := client.Run(context.Background(), map[string]interface{}{})
			require.Error(t, err)
			var cmdErr *CommandError
			require.True(t, errors.As(err, &cmdErr))
			assert.Equal(t, "run", cmdErr.Command)
			assert.Equal(t, tt.wantStatus, cmdErr.StatusCode)
			assert.Equal(t, tt.wantMsg, cmdErr.Message)
		})
	}
}

func TestClient_BacktestMergesBarsAndCash(t *testing.T) {
	var captured map[string]interface{}
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		io.WriteString(w, `{"ok":true,"summary":{"trades":2,"wins":1,"losses":1,"winrate":50,
			"net_pnl":-1.5,"start_equity":10000,"final_equity":9998.5,"max_drawdown":3.2,"sharpe":0.1},
			"trades":[{"entry_ts":1,"exit_ts":2,"side":"long","entry":100,"exit":101,"pnl":0.9}]}`)
	})

	record := map[string]interface{}{"strategy": "sma", "lookback": 500}
	res, err := client.Backtest(context.Background(), record, 800, 2500)
	require.NoError(t, err)

	assert.Equal(t, "sma", captured["strategy"])
	assert.EqualValues(t, 800, captured["bars"])
	assert.EqualValues(t, 800, captured["lookback"])
	assert.EqualValues(t, 2500, captured["bt_cash"])

	assert.Equal(t, 2, res.Summary.Trades)
	assert.True(t, decimal.RequireFromString("-1.5").Equal(res.Summary.NetPnL))
	require.Len(t, res.Trades, 1)
	assert.Equal(t, "long", res.Trades[0].Side)
}

func TestClient_BacktestNotEnoughCandles(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"ok":false,"error":"Not enough candles"}`)
	})

	_, err := client.Backtest(context.Background(), nil, 10, 1000)
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "backtest", cmdErr.Command)
	assert.Equal(t, "Not enough candles", cmdErr.Message)
}

func TestClient_SetPortfolio(t *testing.T) {
	var captured map[string]interface{}
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/portfolio", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		io.WriteString(w, `{"ok":true}`)
	})

	err := client.SetPortfolio(context.Background(), PortfolioPosition{
		Symbol:      "ETH/USDT:USDT",
		Weight:      decimal.RequireFromString("0.4"),
		MaxExposure: decimal.RequireFromString("2500"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT:USDT", captured["symbol"])
	assert.Equal(t, "0.4", captured["weight"])
	assert.Equal(t, "2500", captured["max_exposure"])
}

func TestClient_DeletePortfolio(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/portfolio", r.URL.Path)
		if r.URL.Query().Get("symbol") == "" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"ok":false,"error":"symbol required"}`)
			return
		}
		assert.Equal(t, "BTC/USDT:USDT", r.URL.Query().Get("symbol"))
		io.WriteString(w, `{"ok":true}`)
	})

	require.NoError(t, client.DeletePortfolio(context.Background(), "BTC/USDT:USDT"))

	err := client.DeletePortfolio(context.Background(), "")
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "delete portfolio", cmdErr.Command)
	assert.Equal(t, http.StatusBadRequest, cmdErr.StatusCode)
	assert.Equal(t, "symbol required", cmdErr.Message)
}
