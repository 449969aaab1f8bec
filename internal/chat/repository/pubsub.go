package repository

import (
	"context"

	"campus_chat_service/pkg/wire"
)

const (
	roomChannelPrefix = "chat:room:"
	// PresenceChannel channel every connection listens on for online state
	PresenceChannel = "chat:presence"
)

// RoomChannel fan-out channel name for a room
func RoomChannel(room string) string {
	return roomChannelPrefix + room
}

// Frame one fan-out unit. Except names a connection id the deliverer must
// skip, used so typing signals never echo back to their sender.
type Frame struct {
	Except   string        `json:"except,omitempty"`
	Envelope wire.Envelope `json:"envelope"`
}

// RoomPubSub delivery fabric between accepting a message and the member
// connections. Subscribe stays live until ctx is cancelled; cancelling is
// the leave cutoff.
type RoomPubSub interface {
	Publish(ctx context.Context, channel string, f Frame) error
	Subscribe(ctx context.Context, channel string, handler func(f Frame)) error
}
