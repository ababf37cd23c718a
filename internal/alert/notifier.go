// Package alert handles operator notifications. The dashboard uses it to
// surface failed commands.
package alert

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Notifier is the interface for sending alert messages.
type Notifier interface {
	Send(message string) error
	Close() error
}

// NoOpNotifier is a notifier that does nothing. It is used when alerting is disabled.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Send does nothing and returns nil.
func (n *NoOpNotifier) Send(message string) error {
	return nil
}

// Close does nothing and returns nil.
func (n *NoOpNotifier) Close() error {
	return nil
}

// LogNotifier writes alerts to a zap logger at warn level.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the message.
func (n *LogNotifier) Send(message string) error {
	n.logger.Warn(message, zap.String("component", "alert"))
	return nil
}

// Close flushes the logger.
func (n *LogNotifier) Close() error {
	// Sync fails on some terminals; nothing actionable.
	_ = n.logger.Sync()
	return nil
}

// Multi sends every message to all notifiers and combines their errors.
type Multi []Notifier

// Send delivers message to each notifier.
func (m Multi) Send(message string) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Send(message))
	}
	return err
}

// Close closes each notifier.
func (m Multi) Close() error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Close())
	}
	return err
}
