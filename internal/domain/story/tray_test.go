package story

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storyAt(owner uuid.UUID, created time.Time, slides int) *Story {
	medias := make([]MediaSlide, slides)
	for i := range medias {
		medias[i] = slide(i, uuid.NewString())
	}
	return &Story{
		ID:        uuid.New(),
		OwnerID:   owner,
		Medias:    medias,
		CreatedAt: created,
		ExpiresAt: created.Add(TTL),
	}
}

func TestGroupActiveByOwnerOrdering(t *testing.T) {
	now := t0
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	a1 := storyAt(alice, now.Add(-3*time.Hour), 2)
	a2 := storyAt(alice, now.Add(-1*time.Hour), 1)
	b1 := storyAt(bob, now.Add(-2*time.Hour), 3)
	expired := storyAt(carol, now.Add(-25*time.Hour), 1)

	groups := GroupActiveByOwner([]*Story{a1, b1, expired, a2}, now, nil, 20)

	require.Len(t, groups, 2)
	assert.Equal(t, alice, groups[0].OwnerID)
	assert.Equal(t, []uuid.UUID{a2.ID, a1.ID}, groups[0].StoryIDs)
	assert.Equal(t, a2.CreatedAt, groups[0].LatestCreatedAt)
	assert.Equal(t, 3, groups[0].MediaCount)
	assert.Equal(t, bob, groups[1].OwnerID)
	assert.Equal(t, 3, groups[1].MediaCount)
}

func TestGroupActiveByOwnerPagination(t *testing.T) {
	now := t0
	var all []*Story
	for i := 0; i < 5; i++ {
		all = append(all, storyAt(uuid.New(), now.Add(-time.Duration(i+1)*time.Minute), 1))
	}

	first := GroupActiveByOwner(all, now, nil, 2)
	require.Len(t, first, 2)

	cursor := CursorOf(first[len(first)-1])
	second := GroupActiveByOwner(all, now, &cursor, 2)
	require.Len(t, second, 2)
	assert.True(t, second[0].LatestCreatedAt.Before(cursor.LatestCreatedAt))

	cursor = CursorOf(second[len(second)-1])
	third := GroupActiveByOwner(all, now, &cursor, 2)
	require.Len(t, third, 1)

	seen := map[uuid.UUID]bool{}
	for _, g := range append(append(first, second...), third...) {
		assert.False(t, seen[g.OwnerID], "owner appears on two pages")
		seen[g.OwnerID] = true
	}
	assert.Len(t, seen, 5)
}

func TestGroupActiveByOwnerCursorIsExclusive(t *testing.T) {
	now := t0
	s := storyAt(uuid.New(), now.Add(-time.Hour), 1)
	cursor := TrayCursor{LatestCreatedAt: s.CreatedAt, OwnerID: s.OwnerID}

	assert.Empty(t, GroupActiveByOwner([]*Story{s}, now, &cursor, 20))

	// a cursor past every owner id at that instant
	cursor.OwnerID = uuid.Max
	assert.Empty(t, GroupActiveByOwner([]*Story{s}, now, &cursor, 20))
}

func TestGroupActiveByOwnerPaginatesThroughTies(t *testing.T) {
	now := t0
	at := now.Add(-time.Hour)
	var all []*Story
	for i := 0; i < 5; i++ {
		all = append(all, storyAt(uuid.New(), at, 1))
	}
	all = append(all, storyAt(uuid.New(), at.Add(-time.Minute), 1))

	seen := map[uuid.UUID]bool{}
	var cursor *TrayCursor
	for page := 0; page < 10; page++ {
		groups := GroupActiveByOwner(all, now, cursor, 2)
		if len(groups) == 0 {
			break
		}
		for _, g := range groups {
			assert.False(t, seen[g.OwnerID], "owner appears on two pages")
			seen[g.OwnerID] = true
		}
		next := CursorOf(groups[len(groups)-1])
		cursor = &next
	}
	assert.Len(t, seen, 6)
}

func TestGroupActiveByOwnerTiesUseOwnerID(t *testing.T) {
	now := t0
	at := now.Add(-time.Hour)
	lo := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	hi := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	groups := GroupActiveByOwner([]*Story{storyAt(hi, at, 1), storyAt(lo, at, 1)}, now, nil, 20)

	require.Len(t, groups, 2)
	assert.Equal(t, lo, groups[0].OwnerID)
	assert.Equal(t, hi, groups[1].OwnerID)
}

func TestBuildStackKeepsIDOrder(t *testing.T) {
	owner := uuid.New()
	a := storyAt(owner, t0, 1)
	b := storyAt(owner, t0.Add(-time.Minute), 1)
	gone := uuid.New()

	stack := BuildStack([]uuid.UUID{a.ID, gone, b.ID}, []*Story{b, a})
	require.Len(t, stack, 2)
	assert.Equal(t, a.ID, stack[0].ID)
	assert.Equal(t, b.ID, stack[1].ID)

	assert.Empty(t, BuildStack([]uuid.UUID{gone}, nil))
}
