package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recorder collects triggered view names.
type recorder struct {
	mu    sync.Mutex
	views []string
}

func (r *recorder) TriggerView(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, name)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.views...)
}

// scriptTransport replays payloads then fails with err.
type scriptTransport struct {
	payloads []string
	err      error
}

func (s *scriptTransport) Subscribe(ctx context.Context, handler func([]byte)) error {
	for _, p := range s.payloads {
		handler([]byte(p))
	}
	return s.err
}

func TestParse(t *testing.T) {
	tests := []struct {
		payload string
		want    Kind
		wantErr bool
	}{
		{`{"type":"heartbeat","ts":1700000000}`, KindHeartbeat, false},
		{`{"type":"bootstrap"}`, KindBootstrap, false},
		{`{"type":"history_update"}`, KindHistoryUpdate, false},
		{`{"type":"status_update"}`, KindStatusUpdate, false},
		{`{"type":"price_tick"}`, KindUnknown, false},
		{`{}`, KindUnknown, false},
		{`not json`, KindUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			msg, err := Parse([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Kind)
		})
	}

	msg, err := Parse([]byte(`{"type":"heartbeat","ts":1700000000}`))
	require.NoError(t, err)
	assert.EqualValues(t, 1700000000, msg.TS)
	assert.Equal(t, "heartbeat", msg.Kind.String())
}

func TestTargets(t *testing.T) {
	assert.Equal(t, []string{ViewStatus, ViewHistory}, Targets(KindHeartbeat))
	assert.Equal(t, []string{ViewStatus, ViewHistory}, Targets(KindBootstrap))
	assert.Equal(t, []string{ViewHistory}, Targets(KindHistoryUpdate))
	assert.Equal(t, []string{ViewStatus}, Targets(KindStatusUpdate))
	assert.Empty(t, Targets(KindUnknown))
}

func TestChannel_DispatchAndCloseOnError(t *testing.T) {
	transportErr := errors.New("stream reset")
	rec := &recorder{}
	tr := &scriptTransport{
		payloads: []string{
			`{"type":"bootstrap"}`,
			`garbage`,
			`{"type":"mystery"}`,
			`{"type":"history_update"}`,
			`{"type":"status_update"}`,
		},
		err: transportErr,
	}

	ch := Open(context.Background(), tr, rec, zap.NewNop())
	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("channel did not close after transport error")
	}

	assert.Equal(t, []string{"status", "history", "history", "status"}, rec.snapshot())
	assert.ErrorIs(t, ch.Err(), transportErr)
	assert.EqualValues(t, 4, ch.Received(), "garbage is not counted")
}

func TestChannel_NilTransportIsIdle(t *testing.T) {
	ch := Open(context.Background(), nil, &recorder{}, zap.NewNop())
	select {
	case <-ch.Done():
		t.Fatal("idle channel closed early")
	case <-time.After(20 * time.Millisecond):
	}
	ch.Close()
	assert.NoError(t, ch.Err())
}

func TestSSETransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		flusher := w.(http.Flusher)
		for _, p := range []string{`{"type":"bootstrap"}`, `{"type":"status_update"}`} {
			fmt.Fprintf(w, "data: %s\n\n", p)
			flusher.Flush()
		}
		<-r.Context().Done()
	}))
	defer server.Close()

	rec := &recorder{}
	ch := Open(context.Background(), NewSSETransport(server.URL+"/stream", false, zap.NewNop()), rec, zap.NewNop())

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"status", "history", "status"}, rec.snapshot())

	ch.Close()
	assert.NoError(t, ch.Err(), "closing is not a failure")
}

func TestSSETransport_NoReconnect(t *testing.T) {
	var hits int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ch := Open(context.Background(), NewSSETransport(server.URL, false, zap.NewNop()), &recorder{}, zap.NewNop())
	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close")
	}
	assert.Error(t, ch.Err())
	mu.Lock()
	assert.Equal(t, 1, hits, "a failed stream is not reopened")
	mu.Unlock()
}

func TestWebSocketTransport(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"history_update"}`))
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01})
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"status_update"}`))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "bye"))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	rec := &recorder{}
	ch := Open(context.Background(), NewWebSocketTransport(wsURL, zap.NewNop()), rec, zap.NewNop())

	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after server closed the socket")
	}
	assert.Equal(t, []string{"history", "status"}, rec.snapshot())
	assert.Error(t, ch.Err())
}

func TestWebSocketTransport_DialFailure(t *testing.T) {
	ch := Open(context.Background(), NewWebSocketTransport("ws://127.0.0.1:1/ws", zap.NewNop()), &recorder{}, zap.NewNop())
	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close")
	}
	assert.Error(t, ch.Err())
}
