package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/your-org/bot-dashboard/internal/backend"
	"github.com/your-org/bot-dashboard/internal/livesync"
	"github.com/your-org/bot-dashboard/internal/profile"
	"github.com/your-org/bot-dashboard/internal/push"
	"github.com/your-org/bot-dashboard/internal/view"
)

// Dashboard is the operator surface of the live-sync orchestrator.
type Dashboard interface {
	Tasks() []livesync.TaskState
	SetVisibility(hidden bool)
	Hidden() bool
	PushChannel() *push.Channel
	Store() *profile.Store

	Run(ctx context.Context) (*backend.CommandResult, error)
	Stop(ctx context.Context) (*backend.CommandResult, error)
	Kill(ctx context.Context) (*backend.CommandResult, error)
	Backtest(ctx context.Context, bars int, cash float64) (*backend.BacktestResult, error)
	ClearHistory(ctx context.Context) error
	SetPortfolio(ctx context.Context, pos backend.PortfolioPosition) error
	DeletePortfolio(ctx context.Context, symbol string) error
}

var _ Dashboard = (*livesync.Orchestrator)(nil)

// Views is the read side of the rendered dashboard.
type Views interface {
	Get(name string) (view.Entry, bool)
	Snapshot() map[string]view.Entry
}

// DashboardHandler serves the dashboard control API.
type DashboardHandler struct {
	dash   Dashboard
	views  Views
	logger *zap.Logger
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(dash Dashboard, views Views, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{dash: dash, views: views, logger: logger}
}

// RegisterRoutes registers the dashboard routes on the chi router.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/state", h.GetState)
	r.Get("/views", h.GetViews)
	r.Get("/views/{name}", h.GetView)
	r.Get("/tasks", h.GetTasks)
	r.Put("/visibility", h.PutVisibility)

	r.Get("/profile", h.GetProfile)
	r.Patch("/profile", h.PatchProfile)
	r.Delete("/profile", h.DeleteProfile)

	r.Post("/commands/run", h.command(h.dash.Run))
	r.Post("/commands/stop", h.command(h.dash.Stop))
	r.Post("/commands/kill", h.command(h.dash.Kill))
	r.Post("/commands/backtest", h.PostBacktest)
	r.Post("/history/clear", h.PostClearHistory)

	r.Post("/portfolio", h.PostPortfolio)
	r.Delete("/portfolio", h.DeletePortfolio)
}

// GetViews returns the last value of every rendered view.
func (h *DashboardHandler) GetViews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.views.Snapshot())
}

// GetView returns one view.
func (h *DashboardHandler) GetView(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	e, ok := h.views.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "view not rendered: "+name)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// GetTasks lists the refresh tasks.
func (h *DashboardHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dash.Tasks())
}

type visibilityRequest struct {
	Hidden *bool `json:"hidden"`
}

// PutVisibility pauses or resumes every refresh loop.
func (h *DashboardHandler) PutVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Hidden == nil {
		writeError(w, http.StatusBadRequest, `body must be {"hidden": bool}`)
		return
	}
	h.dash.SetVisibility(*req.Hidden)
	writeJSON(w, http.StatusOK, StateResponse{Hidden: h.dash.Hidden()})
}

// GetProfile returns the collected configuration record.
func (h *DashboardHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dash.Store().Collect())
}

// PatchProfile edits form fields as the operator would. The body maps field
// names to raw values.
func (h *DashboardHandler) PatchProfile(w http.ResponseWriter, r *http.Request) {
	var edits map[string]string
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		writeError(w, http.StatusBadRequest, "body must map field names to string values")
		return
	}
	form := h.dash.Store().Form()
	for name := range edits {
		if _, ok := form.Value(name); !ok {
			writeError(w, http.StatusBadRequest, "unknown field: "+name)
			return
		}
	}
	for name, value := range edits {
		if err := form.Edit(name, value); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, h.dash.Store().Collect())
}

// DeleteProfile removes the persisted profile. The form keeps its values.
func (h *DashboardHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	h.dash.Store().Reset(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *DashboardHandler) command(fn func(context.Context) (*backend.CommandResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := fn(r.Context())
		if err != nil {
			h.commandError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type backtestRequest struct {
	Bars int     `json:"bars"`
	Cash float64 `json:"cash"`
}

// PostBacktest runs a backtest. An empty body uses the configured lookback
// and cash.
func (h *DashboardHandler) PostBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid backtest request")
			return
		}
	}
	res, err := h.dash.Backtest(r.Context(), req.Bars, req.Cash)
	if err != nil {
		h.commandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PostClearHistory deletes the backend trade history.
func (h *DashboardHandler) PostClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.dash.ClearHistory(r.Context()); err != nil {
		h.commandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostPortfolio adds or replaces one portfolio position.
func (h *DashboardHandler) PostPortfolio(w http.ResponseWriter, r *http.Request) {
	var pos backend.PortfolioPosition
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		writeError(w, http.StatusBadRequest, "invalid portfolio position")
		return
	}
	if err := h.dash.SetPortfolio(r.Context(), pos); err != nil {
		h.commandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeletePortfolio removes the position named by the symbol query parameter.
// Symbols contain slashes, so they are not path segments.
func (h *DashboardHandler) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	if err := h.dash.DeletePortfolio(r.Context(), symbol); err != nil {
		h.commandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// commandError relays a backend refusal with its status; transport failures
// become 502.
func (h *DashboardHandler) commandError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	var cmdErr *backend.CommandError
	if errors.As(err, &cmdErr) && cmdErr.StatusCode >= 400 {
		status = cmdErr.StatusCode
	}
	h.logger.Debug("Command rejected", zap.Int("status", status), zap.Error(err))
	writeError(w, status, err.Error())
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
