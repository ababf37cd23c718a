package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 5 * time.Second
)

// WebSocketTransport receives push payloads as websocket text frames.
type WebSocketTransport struct {
	url          string
	dialer       *websocket.Dialer
	pingInterval time.Duration
	logger       *zap.Logger
}

// NewWebSocketTransport creates a transport for url (ws:// or wss://).
func NewWebSocketTransport(url string, logger *zap.Logger) *WebSocketTransport {
	return &WebSocketTransport{
		url:          url,
		dialer:       websocket.DefaultDialer,
		pingInterval: wsPingInterval,
		logger:       logger,
	}
}

// Subscribe implements Transport. It pings the server periodically and
// sends a close frame when ctx is done.
func (t *WebSocketTransport) Subscribe(ctx context.Context, handler func(data []byte)) error {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.url, err)
	}
	defer conn.Close()
	t.logger.Info("Connected to push websocket", zap.String("url", t.url))

	readErr := make(chan error, 1)
	go func() {
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			switch messageType {
			case websocket.TextMessage:
				handler(message)
			default:
				t.logger.Debug("Ignoring non-text websocket frame", zap.Int("type", messageType))
			}
		}
	}()

	pingTicker := time.NewTicker(t.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("push websocket read: %w", err)

		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return fmt.Errorf("push websocket ping: %w", err)
			}

		case <-ctx.Done():
			err := conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				t.logger.Debug("Write close error", zap.Error(err))
			}
			select {
			case <-readErr:
			case <-time.After(2 * time.Second):
				t.logger.Debug("Timeout waiting for server to close push websocket")
			}
			return nil
		}
	}
}
