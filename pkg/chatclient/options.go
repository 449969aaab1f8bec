package chatclient

import (
	"time"

	"go.uber.org/zap"

	"campus_chat_service/pkg/wire"
)

// Options tuning for a chat session. Only URL is required.
type Options struct {
	// URL websocket endpoint, e.g. ws://localhost:8084/ws
	URL string
	// MaxAttempts reconnection attempts before giving up; 0 means retry
	// forever
	MaxAttempts int
	// BackoffBase first reconnect delay (default 1s)
	BackoffBase time.Duration
	// BackoffCeiling cap for doubled delays (default 5s)
	BackoffCeiling time.Duration
	// AckTimeout how long Send waits for a server ack (default 10s)
	AckTimeout time.Duration

	// OnStateChange observes transitions; err is non-nil when the
	// transition was caused by a failure
	OnStateChange func(state State, err error)
	// OnRoomRejected fires when a join is declined by the server
	OnRoomRejected func(room, reason string)
	// OnPresence fires on every presence broadcast
	OnPresence func(p wire.Presence)

	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffCeiling <= 0 {
		o.BackoffCeiling = 5 * time.Second
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
