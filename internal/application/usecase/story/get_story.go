package story

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/internal/domain/user"
	"github.com/khoahotran/stories-backend/pkg/apperror"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

type GetStoryUseCase struct {
	storyRepo story.Repository
	users     user.Repository
	logger    logger.Logger
}

func NewGetStoryUseCase(r story.Repository, u user.Repository, log logger.Logger) *GetStoryUseCase {
	return &GetStoryUseCase{storyRepo: r, users: u, logger: log}
}

type GetStoryInput struct {
	StoryID uuid.UUID
}

type GetStoryOutput struct {
	Story *story.Story
	Owner *user.User
}

// Execute returns the story even past its expiry, until cleanup removes it.
func (uc *GetStoryUseCase) Execute(ctx context.Context, input GetStoryInput) (*GetStoryOutput, error) {
	ctx, span := tracer.Start(ctx, "GetStory")
	defer span.End()

	s, err := uc.storyRepo.FindByID(ctx, input.StoryID)
	if err != nil {
		return nil, err
	}
	s.Medias = s.SortedMedias()

	owner, err := uc.users.FindByID(ctx, s.OwnerID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		uc.logger.Warn("Story owner not found", zap.String("story_id", s.ID.String()), zap.String("owner_id", s.OwnerID.String()))
	}
	return &GetStoryOutput{Story: s, Owner: owner}, nil
}
