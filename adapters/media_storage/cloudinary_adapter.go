package media_storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"

	"github.com/khoahotran/stories-backend/internal/application/service"
	"github.com/khoahotran/stories-backend/internal/config"
	"github.com/khoahotran/stories-backend/internal/domain/media"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

type cloudinaryAdapter struct {
	cld     *cloudinary.Cloudinary
	timeout time.Duration
	logger  logger.Logger
}

func NewCloudinaryAdapter(cfg config.Config, log logger.Logger) (service.MediaStore, error) {

	if cfg.Cloudinary.CloudName == "" {
		return nil, fmt.Errorf("cloudinary cloud_name has not config")
	}

	cld, err := cloudinary.NewFromParams(
		cfg.Cloudinary.CloudName,
		cfg.Cloudinary.ApiKey,
		cfg.Cloudinary.ApiSecret,
	)
	if err != nil {
		return nil, fmt.Errorf("cannot init cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true

	log.Info("connect Cloudinary successfully.", zap.String("cloud", cfg.Cloudinary.CloudName))
	return &cloudinaryAdapter{cld: cld, timeout: cfg.Cloudinary.Timeout, logger: log}, nil
}

func (a *cloudinaryAdapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *cloudinaryAdapter) Upload(ctx context.Context, file io.Reader, opts service.UploadOptions) (*media.UploadResult, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	result, err := a.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		PublicID:     opts.PublicID,
		Folder:       opts.Folder,
		ResourceType: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary rejected upload: %s", result.Error.Message)
	}

	return &media.UploadResult{
		URL:          result.SecureURL,
		PublicID:     result.PublicID,
		ResourceType: result.ResourceType,
		Format:       result.Format,
		Duration:     durationOf(result.Response),
	}, nil
}

func (a *cloudinaryAdapter) Destroy(ctx context.Context, publicID string, kind media.Type) (media.DestroyOutcome, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	res, err := a.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: kind.ResourceKind(),
	})
	if err != nil {
		return media.DestroyOutcome{}, fmt.Errorf("failed to delete cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return media.DestroyOutcome{Result: res.Result}, fmt.Errorf("cloudinary rejected destroy: %s", res.Error.Message)
	}
	return media.DestroyOutcome{Result: res.Result}, nil
}

// durationOf reads the video length from the raw upload response.
func durationOf(raw any) *float64 {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	switch v := m["duration"].(type) {
	case float64:
		return &v
	case int:
		d := float64(v)
		return &d
	default:
		return nil
	}
}
