package http

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khoahotran/stories-backend/internal/application/usecase/cleanup"
	storyUC "github.com/khoahotran/stories-backend/internal/application/usecase/story"
	"github.com/khoahotran/stories-backend/internal/domain/deletion"
	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/internal/domain/storyview"
	"github.com/khoahotran/stories-backend/internal/domain/user"
)

// Story DTOs

type SlideDTO struct {
	Order    int     `json:"order"`
	Type     string  `json:"type"`
	URL      string  `json:"url"`
	PublicID string  `json:"publicId"`
	Duration float64 `json:"duration"`
}

type StoryDTO struct {
	ID         string     `json:"_id"`
	UserID     string     `json:"userId"`
	User       *user.User `json:"user,omitempty"`
	Medias     []SlideDTO `json:"medias"`
	Visibility string     `json:"visibility"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	Archived   bool       `json:"archived"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func ToStoryDTO(s *story.Story, owner *user.User) StoryDTO {
	slides := make([]SlideDTO, len(s.Medias))
	for i, m := range s.Medias {
		slides[i] = SlideDTO{
			Order:    m.Order,
			Type:     string(m.Type),
			URL:      m.URL,
			PublicID: m.PublicID,
			Duration: m.Duration,
		}
	}
	return StoryDTO{
		ID:         s.ID.String(),
		UserID:     s.OwnerID.String(),
		User:       owner,
		Medias:     slides,
		Visibility: string(s.Visibility),
		ExpiresAt:  s.ExpiresAt,
		Archived:   s.Archived,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

type TrayGroupDTO struct {
	User          *user.User `json:"user"`
	Stories       []StoryDTO `json:"stories"`
	HasSeen       bool       `json:"hasSeen"`
	MediaCount    int        `json:"mediaCount"`
	LatestStoryAt time.Time  `json:"latestStoryAt"`
}

type TrayResponse struct {
	Tray       []TrayGroupDTO `json:"tray"`
	NextCursor *string        `json:"nextCursor"`
}

func ToTrayResponse(out *storyUC.GetTrayOutput) TrayResponse {
	resp := TrayResponse{Tray: make([]TrayGroupDTO, len(out.Tray))}
	for i, g := range out.Tray {
		stories := make([]StoryDTO, len(g.Stories))
		for j, s := range g.Stories {
			stories[j] = ToStoryDTO(s, nil)
		}
		resp.Tray[i] = TrayGroupDTO{
			User:          g.Owner,
			Stories:       stories,
			HasSeen:       g.HasSeen,
			MediaCount:    g.MediaCount,
			LatestStoryAt: g.LatestStoryAt,
		}
	}
	if out.NextCursor != nil {
		c := FormatCursor(*out.NextCursor)
		resp.NextCursor = &c
	}
	return resp
}

// FormatCursor and ParseCursor carry the tray cursor as an RFC 3339
// timestamp and the owner id, joined by cursorSep. A bare timestamp resumes
// after every owner at that instant.
const cursorSep = "_"

func FormatCursor(c story.TrayCursor) string {
	return c.LatestCreatedAt.UTC().Format(time.RFC3339Nano) + cursorSep + c.OwnerID.String()
}

func ParseCursor(s string) (*story.TrayCursor, error) {
	if s == "" {
		return nil, nil
	}
	rawTime, rawOwner, compound := strings.Cut(s, cursorSep)
	t, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return nil, err
	}
	c := &story.TrayCursor{LatestCreatedAt: t, OwnerID: uuid.Max}
	if compound {
		if c.OwnerID, err = uuid.Parse(rawOwner); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// View DTOs

type RecordViewRequest struct {
	SlideIndex *int `json:"slideIndex"`
}

type ViewDTO struct {
	ID         string    `json:"_id"`
	StoryID    string    `json:"story"`
	ViewerID   string    `json:"viewer"`
	ViewedAt   time.Time `json:"viewedAt"`
	SlideIndex *int      `json:"slideIndex"`
}

func ToViewDTO(v *storyview.StoryView) ViewDTO {
	return ViewDTO{
		ID:         v.ID.String(),
		StoryID:    v.StoryID.String(),
		ViewerID:   v.ViewerID.String(),
		ViewedAt:   v.ViewedAt,
		SlideIndex: v.SlideIndex,
	}
}

type ViewerDTO struct {
	User       *user.User `json:"user"`
	ViewedAt   time.Time  `json:"viewedAt"`
	SlideIndex *int       `json:"slideIndex"`
}

func ToViewerDTOs(viewers []storyUC.Viewer) []ViewerDTO {
	out := make([]ViewerDTO, len(viewers))
	for i, v := range viewers {
		out[i] = ViewerDTO{User: v.User, ViewedAt: v.ViewedAt, SlideIndex: v.SlideIndex}
	}
	return out
}

// Deletion ledger DTOs

type DeletionDTO struct {
	ID            string    `json:"id"`
	PublicID      string    `json:"public_id"`
	StoryID       *string   `json:"story_id,omitempty"`
	ResourceType  string    `json:"resource_type"`
	Attempts      int       `json:"attempts"`
	Stuck         bool      `json:"stuck"`
	LastError     string    `json:"last_error"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type DeletionListResponse struct {
	Deletions   []DeletionDTO `json:"deletions"`
	Stuck       int64         `json:"stuck"`
	MaxAttempts int           `json:"max_attempts"`
}

func ToDeletionListResponse(out *cleanup.ListDeletionsOutput) DeletionListResponse {
	resp := DeletionListResponse{
		Deletions:   make([]DeletionDTO, len(out.Deletions)),
		Stuck:       out.Stuck,
		MaxAttempts: out.MaxAttempts,
	}
	for i, f := range out.Deletions {
		resp.Deletions[i] = toDeletionDTO(f, out.MaxAttempts)
	}
	return resp
}

func toDeletionDTO(f *deletion.FailedDeletion, maxAttempts int) DeletionDTO {
	dto := DeletionDTO{
		ID:            f.ID.String(),
		PublicID:      f.PublicID,
		ResourceType:  string(f.ResourceType),
		Attempts:      f.Attempts,
		Stuck:         f.Attempts >= maxAttempts,
		LastError:     f.LastError,
		NextAttemptAt: f.NextAttemptAt,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
	if f.StoryID != nil {
		id := f.StoryID.String()
		dto.StoryID = &id
	}
	return dto
}
