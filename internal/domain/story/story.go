package story

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/khoahotran/stories-backend/internal/domain/media"
)

type Visibility string

const (
	VisibilityPublic       Visibility = "PUBLIC"
	VisibilityFollowers    Visibility = "FOLLOWERS"
	VisibilityCloseFriends Visibility = "CLOSE_FRIENDS"
)

// TTL is how long a story stays visible after creation.
const TTL = 24 * time.Hour

const MaxSlides = 10

var (
	ErrNoMedia           = errors.New("story requires at least one media")
	ErrTooManyMedia      = errors.New("story has too many media")
	ErrInvalidVisibility = errors.New("invalid story visibility")
)

func ParseVisibility(s string) (Visibility, error) {
	if s == "" {
		return VisibilityFollowers, nil
	}
	v := Visibility(s)
	switch v {
	case VisibilityPublic, VisibilityFollowers, VisibilityCloseFriends:
		return v, nil
	}
	return "", ErrInvalidVisibility
}

type MediaSlide struct {
	Order    int        `json:"order"`
	Type     media.Type `json:"type"`
	URL      string     `json:"url"`
	PublicID string     `json:"publicId"`
	Duration float64    `json:"duration"`
}

func SlideFromUpload(order int, res *media.UploadResult) MediaSlide {
	return MediaSlide{
		Order:    order,
		Type:     res.Type(),
		URL:      res.URL,
		PublicID: res.PublicID,
		Duration: res.DisplayDuration(),
	}
}

type Story struct {
	ID         uuid.UUID    `json:"_id"`
	OwnerID    uuid.UUID    `json:"userId"`
	Medias     []MediaSlide `json:"medias"`
	Visibility Visibility   `json:"visibility"`
	ExpiresAt  time.Time    `json:"expiresAt"`
	Archived   bool         `json:"archived"`
	HideFrom   []uuid.UUID  `json:"hideFrom"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// New builds a story that expires TTL after now.
func New(ownerID uuid.UUID, visibility Visibility, slides []MediaSlide, now time.Time) (*Story, error) {
	if len(slides) == 0 {
		return nil, ErrNoMedia
	}
	if len(slides) > MaxSlides {
		return nil, ErrTooManyMedia
	}
	if visibility == "" {
		visibility = VisibilityFollowers
	}
	now = now.UTC().Truncate(time.Microsecond)
	return &Story{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Medias:     slides,
		Visibility: visibility,
		ExpiresAt:  now.Add(TTL),
		HideFrom:   []uuid.UUID{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *Story) IsActive(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// SortedMedias returns a copy of the slides ordered by Order ascending.
func (s *Story) SortedMedias() []MediaSlide {
	out := make([]MediaSlide, len(s.Medias))
	copy(out, s.Medias)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// PublicIDs lists the non-empty media identifiers of the story.
func (s *Story) PublicIDs() []string {
	ids := make([]string, 0, len(s.Medias))
	for _, m := range s.Medias {
		if m.PublicID != "" {
			ids = append(ids, m.PublicID)
		}
	}
	return ids
}

// OwnerGroup is one tray entry before owner profiles and stacks are attached.
type OwnerGroup struct {
	OwnerID         uuid.UUID
	StoryIDs        []uuid.UUID
	LatestCreatedAt time.Time
	MediaCount      int
}

type Repository interface {
	Save(ctx context.Context, s *Story) error
	FindByID(ctx context.Context, id uuid.UUID) (*Story, error)
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID, now time.Time) ([]*Story, error)
	GroupActiveByOwner(ctx context.Context, now time.Time, cursor *TrayCursor, limit int) ([]OwnerGroup, error)
	ListExpired(ctx context.Context, now time.Time) ([]*Story, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}
