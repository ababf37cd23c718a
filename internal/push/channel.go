package push

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Transport delivers raw payloads from the backend. Subscribe blocks until
// the subscription ends and returns the reason; it returns nil only when
// ctx is done or the server closed the stream cleanly.
type Transport interface {
	Subscribe(ctx context.Context, handler func(data []byte)) error
}

// Triggerer accelerates a view's refresh.
type Triggerer interface {
	TriggerView(name string)
}

// TriggerFunc adapts a function to Triggerer.
type TriggerFunc func(name string)

func (f TriggerFunc) TriggerView(name string) { f(name) }

// Channel is one push subscription. Once the transport fails the channel is
// closed for good; it never resubscribes.
type Channel struct {
	cancel context.CancelFunc
	done   chan struct{}
	logger *zap.Logger

	mu       sync.Mutex
	err      error
	received int64
}

// Open starts dispatching payloads from t to target. A nil transport yields
// a channel that stays idle until closed.
func Open(ctx context.Context, t Transport, target Triggerer, logger *zap.Logger) *Channel {
	ctx, cancel := context.WithCancel(ctx)
	c := &Channel{cancel: cancel, done: make(chan struct{}), logger: logger}

	if t == nil {
		logger.Info("Push channel disabled")
		go func() {
			<-ctx.Done()
			close(c.done)
		}()
		return c
	}

	go func() {
		defer close(c.done)
		err := t.Subscribe(ctx, func(data []byte) { c.dispatch(data, target) })
		if ctx.Err() != nil {
			return
		}
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		if err != nil {
			logger.Warn("Push channel closed", zap.Error(err))
		} else {
			logger.Info("Push channel ended by server")
		}
	}()
	return c
}

func (c *Channel) dispatch(data []byte, target Triggerer) {
	msg, err := Parse(data)
	if err != nil {
		c.logger.Debug("Discarding push payload", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.received++
	c.mu.Unlock()

	views := Targets(msg.Kind)
	if len(views) == 0 {
		c.logger.Debug("Ignoring push message", zap.String("type", msg.Type))
		return
	}
	for _, v := range views {
		target.TriggerView(v)
	}
}

// Done is closed when the subscription has ended.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err reports why the subscription ended. It is nil while running and after
// Close.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Received returns the number of payloads parsed.
func (c *Channel) Received() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received
}

// Close ends the subscription and waits for it to finish.
func (c *Channel) Close() {
	c.cancel()
	<-c.done
}
