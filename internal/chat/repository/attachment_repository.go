package repository

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"campus_chat_service/pkg/database"
	errprocess "campus_chat_service/pkg/err"
	"campus_chat_service/pkg/wire"

	"github.com/google/uuid"
)

// presigned links are long lived; clients re-fetch history well within this
const presignExpiry = 7 * 24 * time.Hour

// AttachmentRepository stores uploaded files and hands back the reference
// a message carries
type AttachmentRepository interface {
	Store(ctx context.Context, name string, r io.Reader, size int64, contentType string) (*wire.Attachment, error)
}

type minioAttachmentRepository struct {
	mc        *database.MinIOClient
	publicURL string
}

// NewMinIOAttachmentRepository create an AttachmentRepository backed by minio.
// publicURL, when set, is the external base the bucket is served from;
// otherwise download links are presigned.
func NewMinIOAttachmentRepository(mc *database.MinIOClient, publicURL string) AttachmentRepository {
	return &minioAttachmentRepository{
		mc:        mc,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

func (r *minioAttachmentRepository) Store(ctx context.Context, name string, src io.Reader, size int64, contentType string) (*wire.Attachment, error) {
	base := filepath.Base(name)
	objectName := uuid.New().String() + "_" + base

	if err := r.mc.UploadStream(ctx, objectName, src, size, contentType); err != nil {
		return nil, errprocess.Set(fmt.Sprintf("upload attachment [%s] failed: %v", base, err))
	}

	var url string
	if r.publicURL != "" {
		url = fmt.Sprintf("%s/%s/%s", r.publicURL, r.mc.BucketName, objectName)
	} else {
		var err error
		url, err = r.mc.PresignGetURL(ctx, objectName, presignExpiry)
		if err != nil {
			return nil, errprocess.Set(fmt.Sprintf("presign attachment [%s] failed: %v", objectName, err))
		}
	}

	return &wire.Attachment{
		URL:      url,
		Name:     base,
		Size:     size,
		MimeType: contentType,
	}, nil
}
