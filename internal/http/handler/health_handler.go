package handler

import (
	"net/http"
)

// HealthCheckHandler returns HTTP 200 OK while the process is serving.
// It can be used for health checks by Docker or other services.
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// PushState reports the push channel of the dashboard.
type PushState struct {
	Open     bool   `json:"open"`
	Received int64  `json:"received"`
	Error    string `json:"error,omitempty"`
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	Hidden bool      `json:"hidden"`
	Push   PushState `json:"push"`
}

// GetState reports visibility and the push channel.
func (h *DashboardHandler) GetState(w http.ResponseWriter, r *http.Request) {
	resp := StateResponse{Hidden: h.dash.Hidden()}
	if ch := h.dash.PushChannel(); ch != nil {
		resp.Push.Received = ch.Received()
		select {
		case <-ch.Done():
			if err := ch.Err(); err != nil {
				resp.Push.Error = err.Error()
			}
		default:
			resp.Push.Open = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
