package service

import (
	"context"
	"io"

	"github.com/khoahotran/stories-backend/internal/domain/media"
)

type UploadOptions struct {
	Folder   string
	PublicID string
}

// MediaStore is the external object store holding story media.
type MediaStore interface {
	Upload(ctx context.Context, file io.Reader, opts UploadOptions) (*media.UploadResult, error)
	Destroy(ctx context.Context, publicID string, kind media.Type) (media.DestroyOutcome, error)
}
