package push

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
)

// SSETransport subscribes to a text/event-stream endpoint.
type SSETransport struct {
	url       string
	reconnect bool
	client    *http.Client
	logger    *zap.Logger
}

// NewSSETransport creates a transport for url. With reconnect set the stream
// is re-established with exponential backoff; otherwise the first failure
// ends the subscription.
func NewSSETransport(url string, reconnect bool, logger *zap.Logger) *SSETransport {
	return &SSETransport{url: url, reconnect: reconnect, client: &http.Client{}, logger: logger}
}

// Subscribe implements Transport.
func (t *SSETransport) Subscribe(ctx context.Context, handler func(data []byte)) error {
	client := sse.NewClient(t.url)
	client.Connection = t.client
	if t.reconnect {
		client.ReconnectStrategy = backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
		client.ReconnectNotify = func(err error, next time.Duration) {
			t.logger.Warn("Push stream lost, reconnecting", zap.Error(err), zap.Duration("in", next))
		}
	} else {
		client.ReconnectStrategy = &backoff.StopBackOff{}
	}

	t.logger.Info("Subscribing to push stream", zap.String("url", t.url))
	return client.SubscribeRawWithContext(ctx, func(ev *sse.Event) {
		if len(ev.Data) == 0 {
			return
		}
		handler(ev.Data)
	})
}
