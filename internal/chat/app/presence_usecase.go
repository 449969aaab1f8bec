package app

import (
	"context"
	"sync"

	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/pkg/wire"
)

// PresenceUseCase ephemeral signals: typing indicators and online state.
// Nothing here is persisted or replayed; a dropped signal stays dropped.
type PresenceUseCase struct {
	pubsub repository.RoomPubSub

	mu     sync.Mutex
	online map[string]int
}

// NewPresenceUseCase init presence use case
func NewPresenceUseCase(pubsub repository.RoomPubSub) *PresenceUseCase {
	return &PresenceUseCase{
		pubsub: pubsub,
		online: make(map[string]int),
	}
}

// Typing broadcast a typing flag to the room, skipping the sender's own
// connection
func (uc *PresenceUseCase) Typing(ctx context.Context, connID, room, userID, userName string, typing bool) error {
	if !wire.ValidRoom(room) {
		return ErrRoomRejected
	}
	return uc.pubsub.Publish(ctx, repository.RoomChannel(room), repository.Frame{
		Except: connID,
		Envelope: wire.Envelope{
			Event: wire.EventTyping,
			Room:  room,
			Typing: &wire.Typing{
				Room:     room,
				UserID:   userID,
				UserName: userName,
				Typing:   typing,
			},
		},
	})
}

// ConnectionOpened count a user's connection, announcing online on the first
func (uc *PresenceUseCase) ConnectionOpened(ctx context.Context, userID string) {
	uc.mu.Lock()
	uc.online[userID]++
	first := uc.online[userID] == 1
	uc.mu.Unlock()

	if first {
		uc.announce(ctx, userID, true)
	}
}

// ConnectionClosed drop a user's connection, announcing offline on the last
func (uc *PresenceUseCase) ConnectionClosed(ctx context.Context, userID string) {
	uc.mu.Lock()
	n, known := uc.online[userID]
	if !known {
		uc.mu.Unlock()
		return
	}
	n--
	last := n <= 0
	if last {
		delete(uc.online, userID)
	} else {
		uc.online[userID] = n
	}
	uc.mu.Unlock()

	if last {
		uc.announce(ctx, userID, false)
	}
}

func (uc *PresenceUseCase) announce(ctx context.Context, userID string, onlineNow bool) {
	// best effort, same as typing
	_ = uc.pubsub.Publish(ctx, repository.PresenceChannel, repository.Frame{
		Envelope: wire.Envelope{
			Event: wire.EventPresence,
			Presence: &wire.Presence{
				UserID: userID,
				Online: onlineNow,
			},
		},
	})
}
