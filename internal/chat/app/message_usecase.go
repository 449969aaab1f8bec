package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/pkg/logger"
	"campus_chat_service/pkg/wire"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrRoomRejected room name refused
	ErrRoomRejected = errors.New("room rejected")
	// ErrInvalidContent content empty after trim or over the length limit
	ErrInvalidContent = errors.New("invalid message content")
)

// SendMessageUseCase accepts a message, persists it, then fans it out.
// Persist happens strictly before publish so a history fetch can never
// miss a message a client already saw live.
type SendMessageUseCase struct {
	msgRepo repository.MessageRepository
	pubsub  repository.RoomPubSub
	archive repository.ArchiveWriter

	mu     sync.Mutex
	lastTS map[string]int64
}

// NewSendMessageUseCase init send message use case, archive may be nil
func NewSendMessageUseCase(
	msgRepo repository.MessageRepository,
	pubsub repository.RoomPubSub,
	archive repository.ArchiveWriter,
) *SendMessageUseCase {
	return &SendMessageUseCase{
		msgRepo: msgRepo,
		pubsub:  pubsub,
		archive: archive,
		lastTS:  make(map[string]int64),
	}
}

// Execute validate, persist and fan out one message
func (uc *SendMessageUseCase) Execute(ctx context.Context, room, userID, userName, content string, attachment *wire.Attachment) (*wire.Message, error) {
	if !wire.ValidRoom(room) {
		return nil, ErrRoomRejected
	}

	trimmed, ok := wire.ValidContent(content)
	if !ok {
		return nil, ErrInvalidContent
	}

	msg := &wire.Message{
		ID:         uuid.New().String(),
		Room:       room,
		UserID:     userID,
		UserName:   userName,
		Content:    trimmed,
		Attachment: attachment,
		CreatedAt:  uc.stampRoom(room),
	}

	if err := uc.msgRepo.Insert(ctx, msg); err != nil {
		return nil, err
	}

	if err := uc.pubsub.Publish(ctx, repository.RoomChannel(room), repository.Frame{
		Envelope: wire.Envelope{
			Event:   wire.EventMessage,
			Room:    room,
			Message: msg,
		},
	}); err != nil {
		logger.Log.Error("message fan-out failed",
			zap.String("room", room), zap.String("message_id", msg.ID), zap.Error(err))
	}

	if uc.archive != nil {
		go func(m wire.Message) {
			if err := uc.archive.Archive(context.Background(), &m); err != nil {
				logger.Log.Errorf("message archive failed:", err)
			}
		}(*msg)
	}

	return msg, nil
}

// stampRoom assign a per-room non-decreasing timestamp in unix milliseconds.
// Concurrent sends may tie; display order for ties falls back to id.
func (uc *SendMessageUseCase) stampRoom(room string) int64 {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	ts := time.Now().UnixMilli()
	if last := uc.lastTS[room]; ts < last {
		ts = last
	}
	uc.lastTS[room] = ts
	return ts
}
