// Package backend is the HTTP client for the trading bot backend the
// dashboard mirrors. Every call takes a context; cancelling it aborts the
// request and the call returns the context's error.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrBadStatus is returned when the backend answers with a non-2xx status.
var ErrBadStatus = errors.New("backend: unexpected status")

// CommandError reports a command (run/stop/kill/backtest) the backend
// refused or failed.
type CommandError struct {
	Command    string
	StatusCode int
	Message    string
}

func (e *CommandError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s failed (status %d): %s", e.Command, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed (status %d)", e.Command, e.StatusCode)
}

// Client provides methods to interact with the bot backend.
type Client struct {
	baseURL    string
	session    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSession tags every request with the dashboard session id.
func WithSession(id string) Option {
	return func(c *Client) { c.session = id }
}

// NewClient creates a new backend client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body interface{}) (*http.Request, error) {
	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s body: %w", endpoint, err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != "" {
		req.Header.Set("X-Dashboard-Session", c.session)
	}
	return req, nil
}

// do executes the request and returns the status code and body.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, fmt.Errorf("failed to execute %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return resp.StatusCode, nil, ctxErr
		}
		return resp.StatusCode, nil, fmt.Errorf("failed to read %s response body (status: %d): %w", req.URL.Path, resp.StatusCode, err)
	}
	return resp.StatusCode, bodyBytes, nil
}

// getJSON performs a GET and decodes a 2xx JSON body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	status, body, err := c.do(req)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: GET %s returned %d", ErrBadStatus, endpoint, status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// Strategies fetches the strategy list.
func (c *Client) Strategies(ctx context.Context) (Strategies, error) {
	var out Strategies
	if err := c.getJSON(ctx, "/api/strategies", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ticker fetches the last price for symbol.
func (c *Client) Ticker(ctx context.Context, symbol string) (*Ticker, error) {
	q := url.Values{}
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	var out Ticker
	if err := c.getJSON(ctx, "/api/ticker", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the bot status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.getJSON(ctx, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logs fetches the tail of the bot output.
func (c *Client) Logs(ctx context.Context) (*Logs, error) {
	var out Logs
	if err := c.getJSON(ctx, "/logs", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History fetches the most recent limit trade records.
func (c *Client) History(ctx context.Context, limit int) (*History, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out History
	if err := c.getJSON(ctx, "/api/history", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health fetches the subsystem health map.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var raw map[string]interface{}
	if err := c.getJSON(ctx, "/api/health", nil, &raw); err != nil {
		return nil, err
	}
	out := make(Health, len(raw))
	for name, v := range raw {
		s, _ := v.(string)
		out[name] = ParseHealthLevel(s)
	}
	return out, nil
}

// Metrics fetches the runtime metrics summary.
func (c *Client) Metrics(ctx context.Context) (*Metrics, error) {
	var out Metrics
	if err := c.getJSON(ctx, "/api/metrics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Portfolio fetches the configured portfolio weights.
func (c *Client) Portfolio(ctx context.Context) (*Portfolio, error) {
	var out Portfolio
	if err := c.getJSON(ctx, "/api/portfolio", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetPortfolio adds or replaces one portfolio position.
func (c *Client) SetPortfolio(ctx context.Context, pos PortfolioPosition) error {
	return c.command(ctx, "set portfolio", "/api/portfolio", pos, nil)
}

// DeletePortfolio removes the position for symbol.
func (c *Client) DeletePortfolio(ctx context.Context, symbol string) error {
	q := url.Values{}
	q.Set("symbol", symbol)
	return c.send(ctx, http.MethodDelete, "delete portfolio", "/api/portfolio", q, nil, nil)
}

// command POSTs body to endpoint and decodes the reply into out.
func (c *Client) command(ctx context.Context, name, endpoint string, body interface{}, out interface{}) error {
	return c.send(ctx, http.MethodPost, name, endpoint, nil, body, out)
}

// send issues a command request and decodes the reply into out. A non-2xx
// status or ok:false is reported as *CommandError.
func (c *Client) send(ctx context.Context, method, name, endpoint string, query url.Values, body interface{}, out interface{}) error {
	req, err := c.newRequest(ctx, method, endpoint, query, body)
	if err != nil {
		return err
	}
	status, respBody, err := c.do(req)
	if err != nil {
		return err
	}

	var reply struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	decodeErr := json.Unmarshal(respBody, &reply)

	if status < 200 || status > 299 {
		msg := reply.Error
		if decodeErr != nil {
			msg = strings.TrimSpace(string(respBody))
		}
		return &CommandError{Command: name, StatusCode: status, Message: msg}
	}
	if decodeErr != nil {
		return &CommandError{Command: name, StatusCode: status, Message: fmt.Sprintf("malformed reply: %v", decodeErr)}
	}
	if reply.OK != nil && !*reply.OK {
		return &CommandError{Command: name, StatusCode: status, Message: reply.Error}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &CommandError{Command: name, StatusCode: status, Message: fmt.Sprintf("malformed reply: %v", err)}
		}
	}
	return nil
}

// Run starts the bot with the given configuration record.
func (c *Client) Run(ctx context.Context, record interface{}) (*CommandResult, error) {
	var out CommandResult
	if err := c.command(ctx, "run", "/run", record, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stop stops the bot.
func (c *Client) Stop(ctx context.Context) (*CommandResult, error) {
	var out CommandResult
	if err := c.command(ctx, "stop", "/stop", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Kill stops the bot through the kill switch.
func (c *Client) Kill(ctx context.Context) (*CommandResult, error) {
	var out CommandResult
	if err := c.command(ctx, "kill", "/kill", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearHistory deletes the backend's trade history.
func (c *Client) ClearHistory(ctx context.Context) error {
	return c.command(ctx, "clear history", "/api/history/clear", struct{}{}, nil)
}

// Backtest runs a backtest of the given configuration record over bars
// candles starting with cash. The record's own fields are sent as-is with
// bars and bt_cash merged on top. The backend prefers lookback over bars, so
// a positive bars overrides both.
func (c *Client) Backtest(ctx context.Context, record interface{}, bars int, cash float64) (*BacktestResult, error) {
	extra := map[string]interface{}{"bt_cash": cash}
	if bars > 0 {
		extra["bars"] = bars
		extra["lookback"] = bars
	}
	payload, err := mergeFields(record, extra)
	if err != nil {
		return nil, err
	}
	var out BacktestResult
	if err := c.command(ctx, "backtest", "/api/backtest", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// mergeFields flattens record to a JSON object and overlays extra.
func mergeFields(record interface{}, extra map[string]interface{}) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if record != nil {
		raw, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal record: %w", err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("record is not a JSON object: %w", err)
		}
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields, nil
}
