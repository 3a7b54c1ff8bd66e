package story

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TrayCursor is the position of the last group on a tray page.
type TrayCursor struct {
	LatestCreatedAt time.Time
	OwnerID         uuid.UUID
}

// CursorOf returns the cursor that resumes the tray after g.
func CursorOf(g OwnerGroup) TrayCursor {
	return TrayCursor{LatestCreatedAt: g.LatestCreatedAt, OwnerID: g.OwnerID}
}

// Admits reports whether g sorts after the cursor position.
func (c TrayCursor) Admits(g OwnerGroup) bool {
	if g.LatestCreatedAt.Equal(c.LatestCreatedAt) {
		return bytes.Compare(g.OwnerID[:], c.OwnerID[:]) > 0
	}
	return g.LatestCreatedAt.Before(c.LatestCreatedAt)
}

// GroupActiveByOwner groups the non-expired stories per owner, newest owner
// first, ties on the latest timestamp ordered by owner id. Only groups after
// cursor are kept.
func GroupActiveByOwner(stories []*Story, now time.Time, cursor *TrayCursor, limit int) []OwnerGroup {
	byOwner := make(map[uuid.UUID][]*Story)
	for _, s := range stories {
		if !s.IsActive(now) {
			continue
		}
		byOwner[s.OwnerID] = append(byOwner[s.OwnerID], s)
	}

	groups := make([]OwnerGroup, 0, len(byOwner))
	for ownerID, owned := range byOwner {
		sort.Slice(owned, func(i, j int) bool {
			if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
				return bytes.Compare(owned[i].ID[:], owned[j].ID[:]) > 0
			}
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		})

		g := OwnerGroup{
			OwnerID:         ownerID,
			StoryIDs:        make([]uuid.UUID, 0, len(owned)),
			LatestCreatedAt: owned[0].CreatedAt,
		}
		for _, s := range owned {
			g.StoryIDs = append(g.StoryIDs, s.ID)
			g.MediaCount += len(s.Medias)
		}
		if cursor != nil && !cursor.Admits(g) {
			continue
		}
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].LatestCreatedAt.Equal(groups[j].LatestCreatedAt) {
			return bytes.Compare(groups[i].OwnerID[:], groups[j].OwnerID[:]) < 0
		}
		return groups[i].LatestCreatedAt.After(groups[j].LatestCreatedAt)
	})

	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

// BuildStack maps ids through the fetched stories, keeping the order of ids.
// Ids with no matching story are skipped.
func BuildStack(ids []uuid.UUID, fetched []*Story) []*Story {
	lookup := make(map[uuid.UUID]*Story, len(fetched))
	for _, s := range fetched {
		lookup[s.ID] = s
	}
	stack := make([]*Story, 0, len(ids))
	for _, id := range ids {
		if s, ok := lookup[id]; ok {
			stack = append(stack, s)
		}
	}
	return stack
}
