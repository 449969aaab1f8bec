package app

import (
	"context"

	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/pkg/wire"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryUseCase point-in-time snapshot of a room's recent messages.
// Clients reconcile the page against live fan-out by message id.
type HistoryUseCase struct {
	msgRepo repository.MessageRepository
}

// NewHistoryUseCase init history use case
func NewHistoryUseCase(msgRepo repository.MessageRepository) *HistoryUseCase {
	return &HistoryUseCase{msgRepo: msgRepo}
}

// Recent return the newest limit messages of room in ascending order
func (uc *HistoryUseCase) Recent(ctx context.Context, room string, limit int64) ([]wire.Message, error) {
	if !wire.ValidRoom(room) {
		return nil, ErrRoomRejected
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return uc.msgRepo.FindRecent(ctx, room, limit)
}
