// Package memstore holds in-memory implementations of the repository and
// service ports for use case and handler tests.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/khoahotran/stories-backend/internal/domain/deletion"
	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/internal/domain/storyview"
	"github.com/khoahotran/stories-backend/internal/domain/user"
	"github.com/khoahotran/stories-backend/pkg/apperror"
)

type Stories struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*story.Story

	// ListExpiredErr, when set, is returned by ListExpired.
	ListExpiredErr error
}

func NewStories() *Stories {
	return &Stories{byID: make(map[uuid.UUID]*story.Story)}
}

func (r *Stories) Save(_ context.Context, s *story.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.byID[s.ID] = &cp
	return nil
}

func (r *Stories) FindByID(_ context.Context, id uuid.UUID) (*story.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, apperror.NewNotFound("story", id.String())
	}
	cp := *s
	return &cp, nil
}

func (r *Stories) FindActiveByIDs(_ context.Context, ids []uuid.UUID, now time.Time) ([]*story.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*story.Story, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.byID[id]; ok && s.IsActive(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	// id order, not request order
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	return out, nil
}

func (r *Stories) GroupActiveByOwner(_ context.Context, now time.Time, cursor *story.TrayCursor, limit int) ([]story.OwnerGroup, error) {
	return story.GroupActiveByOwner(r.All(), now, cursor, limit), nil
}

func (r *Stories) ListExpired(_ context.Context, now time.Time) ([]*story.Story, error) {
	if r.ListExpiredErr != nil {
		return nil, r.ListExpiredErr
	}
	out := make([]*story.Story, 0)
	for _, s := range r.All() {
		if !s.IsActive(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (r *Stories) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.byID[id]; ok {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

// All returns copies of every stored story.
func (r *Stories) All() []*story.Story {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*story.Story, 0, len(r.byID))
	for _, s := range r.byID {
		cp := *s
		out = append(out, &cp)
	}
	return out
}

func (r *Stories) Has(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byID[id]
	return ok
}

type viewKey struct {
	story  uuid.UUID
	viewer uuid.UUID
}

type Views struct {
	mu    sync.Mutex
	byKey map[viewKey]*storyview.StoryView
}

func NewViews() *Views {
	return &Views{byKey: make(map[viewKey]*storyview.StoryView)}
}

func (r *Views) Upsert(_ context.Context, storyID, viewerID uuid.UUID, slideIndex *int, now time.Time) (*storyview.StoryView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := viewKey{storyID, viewerID}
	v, ok := r.byKey[k]
	if !ok {
		v = &storyview.StoryView{ID: uuid.New(), StoryID: storyID, ViewerID: viewerID, ViewedAt: now, CreatedAt: now}
		r.byKey[k] = v
	}
	v.SlideIndex = slideIndex
	v.UpdatedAt = now
	cp := *v
	return &cp, nil
}

func (r *Views) ExistsForViewer(_ context.Context, storyIDs []uuid.UUID, viewerID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range storyIDs {
		if _, ok := r.byKey[viewKey{id, viewerID}]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (r *Views) ListByStory(_ context.Context, storyID uuid.UUID) ([]*storyview.StoryView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*storyview.StoryView, 0)
	for k, v := range r.byKey {
		if k.story == storyID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ViewedAt.After(out[j].ViewedAt) })
	return out, nil
}

func (r *Views) DeleteByStoryIDs(_ context.Context, storyIDs []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := make(map[uuid.UUID]bool, len(storyIDs))
	for _, id := range storyIDs {
		drop[id] = true
	}
	var n int64
	for k := range r.byKey {
		if drop[k.story] {
			delete(r.byKey, k)
			n++
		}
	}
	return n, nil
}

func (r *Views) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}

type Ledger struct {
	mu    sync.Mutex
	byPID map[string]*deletion.FailedDeletion

	// SaveErr, when set, is returned by Save for the public ids it names.
	SaveErr map[string]error
}

func NewLedger() *Ledger {
	return &Ledger{byPID: make(map[string]*deletion.FailedDeletion)}
}

func (l *Ledger) FindByPublicID(_ context.Context, publicID string) (*deletion.FailedDeletion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.byPID[publicID]
	if !ok {
		return nil, apperror.NewNotFound("failed deletion", publicID)
	}
	cp := *f
	return &cp, nil
}

func (l *Ledger) FindByPublicIDs(_ context.Context, publicIDs []string) (map[string]*deletion.FailedDeletion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]*deletion.FailedDeletion, len(publicIDs))
	for _, id := range publicIDs {
		if f, ok := l.byPID[id]; ok {
			cp := *f
			out[id] = &cp
		}
	}
	return out, nil
}

func (l *Ledger) Save(_ context.Context, f *deletion.FailedDeletion) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.SaveErr[f.PublicID]; err != nil {
		return err
	}
	cp := *f
	if prev, ok := l.byPID[f.PublicID]; ok {
		cp.ID = prev.ID
		cp.CreatedAt = prev.CreatedAt
		if cp.StoryID == nil {
			cp.StoryID = prev.StoryID
		}
	}
	l.byPID[f.PublicID] = &cp
	return nil
}

func (l *Ledger) DeleteByPublicID(_ context.Context, publicID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byPID, publicID)
	return nil
}

func (l *Ledger) ListDue(_ context.Context, now time.Time, maxAttempts, limit int, exclude []string) ([]*deletion.FailedDeletion, error) {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	out := make([]*deletion.FailedDeletion, 0)
	for _, f := range l.All() {
		if skip[f.PublicID] {
			continue
		}
		if !f.NextAttemptAt.After(now) && f.Attempts < maxAttempts {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *Ledger) PendingPublicIDs(_ context.Context, publicIDs []string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0)
	for _, id := range publicIDs {
		if _, ok := l.byPID[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (l *Ledger) List(_ context.Context, filter deletion.ListFilter) ([]*deletion.FailedDeletion, error) {
	out := make([]*deletion.FailedDeletion, 0)
	for _, f := range l.All() {
		if filter.StuckOnly && f.Attempts < filter.MaxAttempts {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if filter.Offset >= len(out) {
		return []*deletion.FailedDeletion{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (l *Ledger) CountStuck(_ context.Context, maxAttempts int) (int64, error) {
	var n int64
	for _, f := range l.All() {
		if f.Attempts >= maxAttempts {
			n++
		}
	}
	return n, nil
}

func (l *Ledger) All() []*deletion.FailedDeletion {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*deletion.FailedDeletion, 0, len(l.byPID))
	for _, f := range l.byPID {
		cp := *f
		out = append(out, &cp)
	}
	return out
}

func (l *Ledger) Get(publicID string) (*deletion.FailedDeletion, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.byPID[publicID]
	if !ok {
		return nil, false
	}
	cp := *f
	return &cp, true
}

type Users struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*user.User
}

func NewUsers(users ...*user.User) *Users {
	u := &Users{byID: make(map[uuid.UUID]*user.User)}
	for _, x := range users {
		u.byID[x.ID] = x
	}
	return u
}

func (r *Users) Add(u *user.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = u
}

func (r *Users) FindByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, apperror.NewNotFound("user", id.String())
	}
	return u, nil
}

func (r *Users) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]*user.User, len(ids))
	for _, id := range ids {
		if u, ok := r.byID[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}
