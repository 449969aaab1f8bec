package app

import (
	"context"
	"io"

	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/pkg/wire"

	"github.com/stretchr/testify/mock"
)

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Insert moke persist one message
func (m *MockMessageRepository) Insert(ctx context.Context, msg *wire.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// FindRecent moke recent message page
func (m *MockMessageRepository) FindRecent(ctx context.Context, room string, limit int64) ([]wire.Message, error) {
	args := m.Called(ctx, room, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]wire.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockRoomPubSub Mock RoomPubSub
type MockRoomPubSub struct {
	mock.Mock
}

// Publish moke publisher
func (m *MockRoomPubSub) Publish(ctx context.Context, channel string, f repository.Frame) error {
	args := m.Called(ctx, channel, f)
	return args.Error(0)
}

// Subscribe moke subscriber
func (m *MockRoomPubSub) Subscribe(ctx context.Context, channel string, handler func(f repository.Frame)) error {
	args := m.Called(ctx, channel, handler)
	return args.Error(0)
}

// MockArchiveWriter Mock ArchiveWriter
type MockArchiveWriter struct {
	mock.Mock
}

// Archive moke archive feed
func (m *MockArchiveWriter) Archive(ctx context.Context, msg *wire.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockAttachmentRepository Mock AttachmentRepository
type MockAttachmentRepository struct {
	mock.Mock
}

// Store moke attachment store
func (m *MockAttachmentRepository) Store(ctx context.Context, name string, r io.Reader, size int64, contentType string) (*wire.Attachment, error) {
	args := m.Called(ctx, name, r, size, contentType)
	if args.Get(0) != nil {
		return args.Get(0).(*wire.Attachment), args.Error(1)
	}
	return nil, args.Error(1)
}
