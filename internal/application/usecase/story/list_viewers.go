package story

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/internal/domain/storyview"
	"github.com/khoahotran/stories-backend/internal/domain/user"
	"github.com/khoahotran/stories-backend/pkg/apperror"
)

type ListViewersUseCase struct {
	storyRepo story.Repository
	viewRepo  storyview.Repository
	users     user.Repository
}

func NewListViewersUseCase(r story.Repository, v storyview.Repository, u user.Repository) *ListViewersUseCase {
	return &ListViewersUseCase{storyRepo: r, viewRepo: v, users: u}
}

type ListViewersInput struct {
	StoryID  uuid.UUID
	CallerID uuid.UUID
}

type Viewer struct {
	User       *user.User
	ViewedAt   time.Time
	SlideIndex *int
}

type ListViewersOutput struct {
	Viewers []Viewer
}

// Execute lists who viewed a story, newest first. Only the owner may ask.
// Viewers whose profile is gone are left out.
func (uc *ListViewersUseCase) Execute(ctx context.Context, input ListViewersInput) (*ListViewersOutput, error) {
	ctx, span := tracer.Start(ctx, "ListViewers")
	defer span.End()

	s, err := uc.storyRepo.FindByID(ctx, input.StoryID)
	if err != nil {
		return nil, err
	}
	if s.OwnerID != input.CallerID {
		return nil, apperror.NewPermissionDenied("only the story owner can see its viewers")
	}

	views, err := uc.viewRepo.ListByStory(ctx, s.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(views))
	for i, v := range views {
		ids[i] = v.ViewerID
	}
	profiles, err := uc.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	viewers := make([]Viewer, 0, len(views))
	for _, v := range views {
		u, ok := profiles[v.ViewerID]
		if !ok {
			continue
		}
		viewers = append(viewers, Viewer{User: u, ViewedAt: v.ViewedAt, SlideIndex: v.SlideIndex})
	}
	return &ListViewersOutput{Viewers: viewers}, nil
}
