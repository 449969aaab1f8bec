package app

import (
	"context"
	"errors"
	"io"

	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/pkg/wire"
)

// MaxAttachmentSize upload size limit in bytes
const MaxAttachmentSize = 10 << 20

// ErrAttachmentTooLarge upload exceeds MaxAttachmentSize
var ErrAttachmentTooLarge = errors.New("attachment too large")

// AttachmentUseCase stores an uploaded file and returns the attachment
// reference the sender puts on its message
type AttachmentUseCase struct {
	attRepo repository.AttachmentRepository
}

// NewAttachmentUseCase init attachment use case
func NewAttachmentUseCase(attRepo repository.AttachmentRepository) *AttachmentUseCase {
	return &AttachmentUseCase{attRepo: attRepo}
}

// Upload store one file
func (uc *AttachmentUseCase) Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (*wire.Attachment, error) {
	if size <= 0 || size > MaxAttachmentSize {
		return nil, ErrAttachmentTooLarge
	}
	return uc.attRepo.Store(ctx, name, r, size, contentType)
}
