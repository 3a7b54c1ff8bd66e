package story

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/internal/domain/storyview"
	"github.com/khoahotran/stories-backend/internal/domain/user"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

const (
	DefaultTrayLimit = 20
	MaxTrayLimit     = 50
)

// ClampTrayLimit maps a requested page size into [1, MaxTrayLimit]. Zero means
// the default.
func ClampTrayLimit(n int) int {
	switch {
	case n == 0:
		return DefaultTrayLimit
	case n < 1:
		return 1
	case n > MaxTrayLimit:
		return MaxTrayLimit
	}
	return n
}

type GetTrayUseCase struct {
	storyRepo story.Repository
	viewRepo  storyview.Repository
	users     user.Repository
	clock     clock.Clock
	logger    logger.Logger
}

func NewGetTrayUseCase(r story.Repository, v storyview.Repository, u user.Repository, clk clock.Clock, log logger.Logger) *GetTrayUseCase {
	return &GetTrayUseCase{storyRepo: r, viewRepo: v, users: u, clock: clk, logger: log}
}

type GetTrayInput struct {
	ViewerID uuid.UUID
	Limit    int
	Cursor   *story.TrayCursor
}

type TrayGroup struct {
	Owner         *user.User
	StoryIDs      []uuid.UUID
	Stories       []*story.Story
	HasSeen       bool
	MediaCount    int
	LatestStoryAt time.Time
}

type GetTrayOutput struct {
	Tray       []TrayGroup
	NextCursor *story.TrayCursor
}

func (uc *GetTrayUseCase) Execute(ctx context.Context, input GetTrayInput) (*GetTrayOutput, error) {
	ctx, span := tracer.Start(ctx, "GetTray")
	defer span.End()

	limit := ClampTrayLimit(input.Limit)
	now := uc.clock.Now()
	span.SetAttributes(attribute.Int("limit", limit))

	groups, err := uc.storyRepo.GroupActiveByOwner(ctx, now, input.Cursor, limit)
	if err != nil {
		return nil, err
	}

	ownerIDs := make([]uuid.UUID, len(groups))
	for i, g := range groups {
		ownerIDs[i] = g.OwnerID
	}
	owners, err := uc.users.FindByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, err
	}

	tray := make([]TrayGroup, 0, len(groups))
	for _, g := range groups {
		owner, ok := owners[g.OwnerID]
		if !ok {
			uc.logger.Warn("Story owner not found, skipping tray group", zap.String("owner_id", g.OwnerID.String()))
			continue
		}

		seen, err := uc.viewRepo.ExistsForViewer(ctx, g.StoryIDs, input.ViewerID)
		if err != nil {
			return nil, err
		}

		fetched, err := uc.storyRepo.FindActiveByIDs(ctx, g.StoryIDs, now)
		if err != nil {
			return nil, err
		}
		stack := story.BuildStack(g.StoryIDs, fetched)
		for _, s := range stack {
			s.Medias = s.SortedMedias()
		}

		tray = append(tray, TrayGroup{
			Owner:         owner,
			StoryIDs:      g.StoryIDs,
			Stories:       stack,
			HasSeen:       seen,
			MediaCount:    g.MediaCount,
			LatestStoryAt: g.LatestCreatedAt,
		})
	}

	out := &GetTrayOutput{Tray: tray}
	if len(groups) > 0 && len(groups) == limit {
		next := story.CursorOf(groups[len(groups)-1])
		out.NextCursor = &next
	}
	return out, nil
}
