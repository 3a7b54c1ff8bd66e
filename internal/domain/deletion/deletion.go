package deletion

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/khoahotran/stories-backend/internal/domain/media"
)

// MaxErrorLength bounds LastError, in runes.
const MaxErrorLength = 512

// FailedDeletion is a ledger row for a media object the store did not remove.
// There is at most one row per PublicID.
type FailedDeletion struct {
	ID            uuid.UUID  `json:"id"`
	PublicID      string     `json:"publicId"`
	StoryID       *uuid.UUID `json:"storyId,omitempty"`
	ResourceType  media.Type `json:"resourceType"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"lastError"`
	NextAttemptAt time.Time  `json:"nextAttemptAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// NewFailure creates the ledger row for a first failed attempt.
func NewFailure(publicID string, storyID *uuid.UUID, kind media.Type, cause string, now time.Time, p RetryPolicy) *FailedDeletion {
	now = now.UTC().Truncate(time.Microsecond)
	f := &FailedDeletion{
		ID:           uuid.New(),
		PublicID:     publicID,
		StoryID:      storyID,
		ResourceType: kind,
		CreatedAt:    now,
	}
	f.RecordFailure(cause, now, p)
	return f
}

// RecordFailure registers one more failed attempt. Once Attempts reaches the
// policy ceiling only LastError is refreshed and NextAttemptAt stays put.
func (f *FailedDeletion) RecordFailure(cause string, now time.Time, p RetryPolicy) {
	p = p.WithDefaults()
	now = now.UTC().Truncate(time.Microsecond)
	f.LastError = TruncateError(cause)
	f.UpdatedAt = now
	if f.Attempts >= p.MaxAttempts {
		f.Attempts = p.MaxAttempts
		return
	}
	f.Attempts++
	f.NextAttemptAt = now.Add(p.Backoff(f.Attempts))
}

// Stuck reports whether the row has exhausted its attempts.
func (f *FailedDeletion) Stuck(p RetryPolicy) bool {
	return f.Attempts >= p.WithDefaults().MaxAttempts
}

// Due reports whether the object may be attempted again at now. A stuck row
// becomes due once per p.Max after its last attempt.
func (f *FailedDeletion) Due(now time.Time, p RetryPolicy) bool {
	p = p.WithDefaults()
	if f.Stuck(p) {
		return !f.UpdatedAt.Add(p.Max).After(now)
	}
	return !f.NextAttemptAt.After(now)
}

func TruncateError(s string) string {
	if utf8.RuneCountInString(s) <= MaxErrorLength {
		return s
	}
	r := []rune(s)
	return string(r[:MaxErrorLength])
}

type ListFilter struct {
	StuckOnly   bool
	MaxAttempts int
	Limit       int
	Offset      int
}

type Ledger interface {
	FindByPublicID(ctx context.Context, publicID string) (*FailedDeletion, error)
	// FindByPublicIDs returns the existing rows keyed by public id.
	FindByPublicIDs(ctx context.Context, publicIDs []string) (map[string]*FailedDeletion, error)
	// Save inserts or replaces the row keyed by PublicID.
	Save(ctx context.Context, f *FailedDeletion) error
	// DeleteByPublicID is a no-op when no row exists.
	DeleteByPublicID(ctx context.Context, publicID string) error
	// ListDue returns up to limit rows below maxAttempts whose next attempt is
	// at or before now, oldest first, skipping the ids in exclude.
	ListDue(ctx context.Context, now time.Time, maxAttempts, limit int, exclude []string) ([]*FailedDeletion, error)
	PendingPublicIDs(ctx context.Context, publicIDs []string) ([]string, error)
	List(ctx context.Context, filter ListFilter) ([]*FailedDeletion, error)
	CountStuck(ctx context.Context, maxAttempts int) (int64, error)
}
