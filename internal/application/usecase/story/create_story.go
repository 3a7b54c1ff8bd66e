package story

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/khoahotran/stories-backend/internal/application/service"
	"github.com/khoahotran/stories-backend/internal/domain/media"
	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/pkg/apperror"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

var tracer = otel.Tracer("usecase/story")

type MediaFile struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

type CreateStoryUseCase struct {
	storyRepo story.Repository
	store     service.MediaStore
	publisher service.EventPublisher
	clock     clock.Clock
	logger    logger.Logger
}

func NewCreateStoryUseCase(r story.Repository, s service.MediaStore, p service.EventPublisher, clk clock.Clock, log logger.Logger) *CreateStoryUseCase {
	return &CreateStoryUseCase{storyRepo: r, store: s, publisher: p, clock: clk, logger: log}
}

type CreateStoryInput struct {
	OwnerID    uuid.UUID
	Files      []MediaFile
	Visibility string
}

type CreateStoryOutput struct {
	Story *story.Story
}

// Execute uploads every file in order and creates the story only if all of
// them produced a usable result. Objects uploaded before a failure stay in
// the store.
func (uc *CreateStoryUseCase) Execute(ctx context.Context, input CreateStoryInput) (*CreateStoryOutput, error) {
	ctx, span := tracer.Start(ctx, "CreateStory")
	defer span.End()
	span.SetAttributes(attribute.String("owner_id", input.OwnerID.String()), attribute.Int("files", len(input.Files)))

	if len(input.Files) == 0 {
		return nil, apperror.NewInvalidInput("media is required to create a story", story.ErrNoMedia)
	}
	if len(input.Files) > story.MaxSlides {
		return nil, apperror.NewInvalidInput(fmt.Sprintf("a story accepts at most %d media", story.MaxSlides), story.ErrTooManyMedia)
	}
	visibility, err := story.ParseVisibility(input.Visibility)
	if err != nil {
		return nil, apperror.NewInvalidInput(fmt.Sprintf("unknown visibility '%s'", input.Visibility), err)
	}

	folder := fmt.Sprintf("stories/%s", input.OwnerID)
	slides := make([]story.MediaSlide, 0, len(input.Files))
	for i, f := range input.Files {
		res, err := uc.upload(ctx, f, folder)
		if err != nil {
			span.RecordError(err)
			return nil, apperror.NewUpload(fmt.Sprintf("upload of media %d (%s) failed", i, f.Filename), err)
		}
		if !res.Usable() {
			return nil, apperror.NewUpload(fmt.Sprintf("upload of media %d (%s) returned no usable result", i, f.Filename), nil)
		}
		slides = append(slides, story.SlideFromUpload(i, res))
	}

	s, err := story.New(input.OwnerID, visibility, slides, uc.clock.Now())
	if err != nil {
		return nil, apperror.NewInvalidInput("invalid story", err)
	}
	if err := uc.storyRepo.Save(ctx, s); err != nil {
		return nil, err
	}

	uc.logger.Info("Story created",
		zap.String("story_id", s.ID.String()),
		zap.String("owner_id", s.OwnerID.String()),
		zap.Int("medias", len(s.Medias)),
	)

	go func() {
		evt := story.Event{Type: story.EventCreated, StoryID: s.ID, OwnerID: s.OwnerID, OccurredAt: s.CreatedAt}
		if err := uc.publisher.Publish(context.Background(), evt); err != nil {
			uc.logger.Error("Failed to publish Kafka 'story.created' event", err, zap.String("story_id", s.ID.String()))
		}
	}()

	return &CreateStoryOutput{Story: s}, nil
}

func (uc *CreateStoryUseCase) upload(ctx context.Context, f MediaFile, folder string) (*media.UploadResult, error) {
	if f.Open == nil {
		return nil, errors.New("file has no content")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer rc.Close()
	return uc.store.Upload(ctx, rc, service.UploadOptions{Folder: folder})
}
