// Package push subscribes to the backend's change notifications and turns
// them into out-of-band view refreshes.
package push

import (
	"encoding/json"
	"fmt"
)

// Kind is the type of a push message.
type Kind int

const (
	KindUnknown Kind = iota
	KindHeartbeat
	KindBootstrap
	KindHistoryUpdate
	KindStatusUpdate
)

func (k Kind) String() string {
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindBootstrap:
		return "bootstrap"
	case KindHistoryUpdate:
		return "history_update"
	case KindStatusUpdate:
		return "status_update"
	default:
		return "unknown"
	}
}

// ParseKind maps a wire type tag to its Kind.
func ParseKind(tag string) Kind {
	switch tag {
	case "heartbeat":
		return KindHeartbeat
	case "bootstrap":
		return KindBootstrap
	case "history_update":
		return KindHistoryUpdate
	case "status_update":
		return KindStatusUpdate
	default:
		return KindUnknown
	}
}

// Views that a push message asks to refresh.
const (
	ViewStatus  = "status"
	ViewHistory = "history"
)

// Message is one decoded push payload.
type Message struct {
	Kind Kind
	Type string
	// TS is set on heartbeats (unix seconds).
	TS int64
}

// Parse decodes a JSON push payload. A payload with an unrecognised type
// parses to KindUnknown.
func Parse(data []byte) (Message, error) {
	var wire struct {
		Type string `json:"type"`
		TS   int64  `json:"ts"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return Message{}, fmt.Errorf("invalid push payload: %w", err)
	}
	return Message{Kind: ParseKind(wire.Type), Type: wire.Type, TS: wire.TS}, nil
}

// Targets returns the views a message of kind k refreshes.
func Targets(k Kind) []string {
	switch k {
	case KindHeartbeat, KindBootstrap:
		return []string{ViewStatus, ViewHistory}
	case KindHistoryUpdate:
		return []string{ViewHistory}
	case KindStatusUpdate:
		return []string{ViewStatus}
	default:
		return nil
	}
}
