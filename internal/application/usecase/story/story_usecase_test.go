package story

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khoahotran/stories-backend/internal/application/service"
	"github.com/khoahotran/stories-backend/internal/domain/media"
	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/internal/domain/user"
	"github.com/khoahotran/stories-backend/internal/testutil/memstore"
	"github.com/khoahotran/stories-backend/pkg/apperror"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

var t0 = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func file(name string) MediaFile {
	return MediaFile{Filename: name, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader([]byte("binary"))), nil
	}}
}

func waitEvent(t *testing.T, p *memstore.Publisher) story.Event {
	t.Helper()
	select {
	case evt := <-p.Sent():
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
		return story.Event{}
	}
}

func TestCreateStory(t *testing.T) {
	stories := memstore.NewStories()
	store := memstore.NewMediaStore()
	pub := memstore.NewPublisher()
	clk := testclock.NewClock(t0)
	uc := NewCreateStoryUseCase(stories, store, pub, clk, logger.NewNop())

	dur := 7.5
	store.UploadFunc = func(n int, opts service.UploadOptions) (*media.UploadResult, error) {
		if n == 1 {
			return &media.UploadResult{URL: "https://cdn/v.mp4", PublicID: opts.Folder + "/v", ResourceType: "video", Format: "mp4", Duration: &dur}, nil
		}
		return &media.UploadResult{URL: "https://cdn/i.jpg", PublicID: opts.Folder + "/i", ResourceType: "image", Format: "jpg"}, nil
	}

	owner := uuid.New()
	out, err := uc.Execute(context.Background(), CreateStoryInput{OwnerID: owner, Files: []MediaFile{file("a.jpg"), file("b.mp4")}})
	require.NoError(t, err)

	s := out.Story
	assert.Equal(t, owner, s.OwnerID)
	assert.Equal(t, story.VisibilityFollowers, s.Visibility)
	assert.Equal(t, t0.Add(24*time.Hour), s.ExpiresAt)
	require.Len(t, s.Medias, 2)
	assert.Equal(t, story.MediaSlide{Order: 0, Type: media.TypeImage, URL: "https://cdn/i.jpg", PublicID: "stories/" + owner.String() + "/i", Duration: 5}, s.Medias[0])
	assert.Equal(t, media.TypeVideo, s.Medias[1].Type)
	assert.Equal(t, 7.5, s.Medias[1].Duration)
	assert.True(t, stories.Has(s.ID))

	evt := waitEvent(t, pub)
	assert.Equal(t, story.EventCreated, evt.Type)
	assert.Equal(t, s.ID, evt.StoryID)
}

func TestCreateStoryValidation(t *testing.T) {
	uc := NewCreateStoryUseCase(memstore.NewStories(), memstore.NewMediaStore(), memstore.NewPublisher(), testclock.NewClock(t0), logger.NewNop())

	_, err := uc.Execute(context.Background(), CreateStoryInput{OwnerID: uuid.New()})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	files := make([]MediaFile, 11)
	for i := range files {
		files[i] = file("x.jpg")
	}
	_, err = uc.Execute(context.Background(), CreateStoryInput{OwnerID: uuid.New(), Files: files})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = uc.Execute(context.Background(), CreateStoryInput{OwnerID: uuid.New(), Files: []MediaFile{file("a.jpg")}, Visibility: "secret"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestCreateStoryUploadFailureCreatesNothing(t *testing.T) {
	cases := map[string]func(n int, opts service.UploadOptions) (*media.UploadResult, error){
		"error": func(n int, opts service.UploadOptions) (*media.UploadResult, error) {
			if n == 1 {
				return nil, memstore.ErrStoreDown
			}
			return &media.UploadResult{URL: "u", PublicID: "p", ResourceType: "image"}, nil
		},
		"unusable": func(n int, opts service.UploadOptions) (*media.UploadResult, error) {
			if n == 1 {
				return &media.UploadResult{PublicID: "p"}, nil
			}
			return &media.UploadResult{URL: "u", PublicID: "p", ResourceType: "image"}, nil
		},
	}

	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			stories := memstore.NewStories()
			store := memstore.NewMediaStore()
			store.UploadFunc = fn
			uc := NewCreateStoryUseCase(stories, store, memstore.NewPublisher(), testclock.NewClock(t0), logger.NewNop())

			_, err := uc.Execute(context.Background(), CreateStoryInput{OwnerID: uuid.New(), Files: []MediaFile{file("a"), file("b"), file("c")}})
			assert.ErrorIs(t, err, apperror.ErrUpload)
			assert.Empty(t, stories.All())
		})
	}
}

func TestCreateStoryOpenFailure(t *testing.T) {
	uc := NewCreateStoryUseCase(memstore.NewStories(), memstore.NewMediaStore(), memstore.NewPublisher(), testclock.NewClock(t0), logger.NewNop())
	broken := MediaFile{Filename: "bad", Open: func() (io.ReadCloser, error) { return nil, errors.New("disk") }}

	_, err := uc.Execute(context.Background(), CreateStoryInput{OwnerID: uuid.New(), Files: []MediaFile{broken}})
	assert.ErrorIs(t, err, apperror.ErrUpload)
}

type trayFixture struct {
	stories *memstore.Stories
	views   *memstore.Views
	users   *memstore.Users
	clock   *testclock.Clock
	uc      *GetTrayUseCase
}

func newTrayFixture() *trayFixture {
	f := &trayFixture{
		stories: memstore.NewStories(),
		views:   memstore.NewViews(),
		users:   memstore.NewUsers(),
		clock:   testclock.NewClock(t0),
	}
	f.uc = NewGetTrayUseCase(f.stories, f.views, f.users, f.clock, logger.NewNop())
	return f
}

func (f *trayFixture) addStory(t *testing.T, owner uuid.UUID, createdAgo time.Duration, orders ...int) *story.Story {
	t.Helper()
	if _, err := f.users.FindByID(context.Background(), owner); err != nil {
		f.users.Add(&user.User{ID: owner, Username: owner.String()[:8]})
	}
	slides := make([]story.MediaSlide, len(orders))
	for i, o := range orders {
		slides[i] = story.MediaSlide{Order: o, Type: media.TypeImage, URL: "u", PublicID: uuid.NewString(), Duration: 5}
	}
	s, err := story.New(owner, story.VisibilityPublic, slides, t0.Add(-createdAgo))
	require.NoError(t, err)
	require.NoError(t, f.stories.Save(context.Background(), s))
	return s
}

func TestGetTrayGroupsAndSeen(t *testing.T) {
	f := newTrayFixture()
	alice, bob, viewer := uuid.New(), uuid.New(), uuid.New()

	a1 := f.addStory(t, alice, 3*time.Hour, 0)
	a2 := f.addStory(t, alice, time.Hour, 2, 0, 1)
	b1 := f.addStory(t, bob, 2*time.Hour, 0)
	f.addStory(t, uuid.New(), 30*time.Hour, 0)

	_, err := f.views.Upsert(context.Background(), b1.ID, viewer, nil, t0)
	require.NoError(t, err)

	out, err := f.uc.Execute(context.Background(), GetTrayInput{ViewerID: viewer})
	require.NoError(t, err)
	require.Len(t, out.Tray, 2)
	assert.Nil(t, out.NextCursor)

	first := out.Tray[0]
	assert.Equal(t, alice, first.Owner.ID)
	assert.False(t, first.HasSeen)
	assert.Equal(t, 4, first.MediaCount)
	assert.Equal(t, []uuid.UUID{a2.ID, a1.ID}, first.StoryIDs)
	require.Len(t, first.Stories, 2)
	assert.Equal(t, a2.ID, first.Stories[0].ID)
	assert.Equal(t, []int{0, 1, 2}, []int{first.Stories[0].Medias[0].Order, first.Stories[0].Medias[1].Order, first.Stories[0].Medias[2].Order})

	assert.Equal(t, bob, out.Tray[1].Owner.ID)
	assert.True(t, out.Tray[1].HasSeen)
}

func TestGetTrayPaginatesWithoutDuplicates(t *testing.T) {
	f := newTrayFixture()
	for i := 0; i < 5; i++ {
		f.addStory(t, uuid.New(), time.Duration(i+1)*time.Minute, 0)
	}

	seen := map[uuid.UUID]bool{}
	var cursor *story.TrayCursor
	pages := 0
	for {
		out, err := f.uc.Execute(context.Background(), GetTrayInput{ViewerID: uuid.New(), Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		pages++
		for _, g := range out.Tray {
			assert.False(t, seen[g.Owner.ID])
			seen[g.Owner.ID] = true
		}
		if out.NextCursor == nil {
			assert.Len(t, out.Tray, 1)
			break
		}
		assert.Len(t, out.Tray, 2)
		cursor = out.NextCursor
	}
	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 5)
}

func TestGetTrayPaginatesOwnersWithTheSameLatestStory(t *testing.T) {
	f := newTrayFixture()
	owners := map[uuid.UUID]bool{}
	for i := 0; i < 3; i++ {
		s := f.addStory(t, uuid.New(), time.Minute, 0)
		owners[s.OwnerID] = true
	}

	seen := map[uuid.UUID]bool{}
	var cursor *story.TrayCursor
	for {
		out, err := f.uc.Execute(context.Background(), GetTrayInput{ViewerID: uuid.New(), Limit: 1, Cursor: cursor})
		require.NoError(t, err)
		for _, g := range out.Tray {
			seen[g.Owner.ID] = true
		}
		if out.NextCursor == nil {
			break
		}
		cursor = out.NextCursor
	}
	assert.Equal(t, owners, seen)
}

func TestGetTrayExactlyFullLastPageStillReturnsCursor(t *testing.T) {
	f := newTrayFixture()
	f.addStory(t, uuid.New(), time.Minute, 0)
	f.addStory(t, uuid.New(), 2*time.Minute, 0)

	out, err := f.uc.Execute(context.Background(), GetTrayInput{ViewerID: uuid.New(), Limit: 2})
	require.NoError(t, err)
	require.NotNil(t, out.NextCursor)

	out, err = f.uc.Execute(context.Background(), GetTrayInput{ViewerID: uuid.New(), Limit: 2, Cursor: out.NextCursor})
	require.NoError(t, err)
	assert.Empty(t, out.Tray)
	assert.Nil(t, out.NextCursor)
}

// Stories removed between aggregation and re-fetch leave an empty stack.
type vanishingStories struct {
	*memstore.Stories
}

func (v vanishingStories) FindActiveByIDs(ctx context.Context, ids []uuid.UUID, now time.Time) ([]*story.Story, error) {
	return []*story.Story{}, nil
}

func TestGetTrayKeepsGroupWithEmptyStack(t *testing.T) {
	f := newTrayFixture()
	f.addStory(t, uuid.New(), time.Minute, 0)
	uc := NewGetTrayUseCase(vanishingStories{f.stories}, f.views, f.users, f.clock, logger.NewNop())

	out, err := uc.Execute(context.Background(), GetTrayInput{ViewerID: uuid.New()})
	require.NoError(t, err)
	require.Len(t, out.Tray, 1)
	assert.Empty(t, out.Tray[0].Stories)
	assert.Len(t, out.Tray[0].StoryIDs, 1)
}

func TestGetTraySkipsMissingOwner(t *testing.T) {
	f := newTrayFixture()
	ghost := uuid.New()
	s, err := story.New(ghost, story.VisibilityPublic, []story.MediaSlide{{Order: 0, URL: "u", PublicID: "p"}}, t0)
	require.NoError(t, err)
	require.NoError(t, f.stories.Save(context.Background(), s))

	out, err := f.uc.Execute(context.Background(), GetTrayInput{ViewerID: uuid.New(), Limit: 1})
	require.NoError(t, err)
	assert.Empty(t, out.Tray)
	assert.NotNil(t, out.NextCursor, "pagination still advances past the skipped group")
}

func TestClampTrayLimit(t *testing.T) {
	assert.Equal(t, 20, ClampTrayLimit(0))
	assert.Equal(t, 1, ClampTrayLimit(-4))
	assert.Equal(t, 7, ClampTrayLimit(7))
	assert.Equal(t, 50, ClampTrayLimit(500))
}

func TestRecordView(t *testing.T) {
	stories := memstore.NewStories()
	views := memstore.NewViews()
	pub := memstore.NewPublisher()
	clk := testclock.NewClock(t0)
	uc := NewRecordViewUseCase(stories, views, pub, clk, logger.NewNop())

	owner, viewer := uuid.New(), uuid.New()
	s, err := story.New(owner, story.VisibilityPublic, []story.MediaSlide{{Order: 0, URL: "u", PublicID: "p"}}, t0)
	require.NoError(t, err)
	require.NoError(t, stories.Save(context.Background(), s))

	zero, three := 0, 3
	first, err := uc.Execute(context.Background(), RecordViewInput{RawStoryID: s.ID.String(), ViewerID: viewer, SlideIndex: &zero})
	require.NoError(t, err)
	evt := waitEvent(t, pub)
	assert.Equal(t, story.EventViewed, evt.Type)
	assert.Equal(t, owner, evt.OwnerID)
	require.NotNil(t, evt.ViewerID)
	assert.Equal(t, viewer, *evt.ViewerID)

	clk.Advance(10 * time.Minute)
	second, err := uc.Execute(context.Background(), RecordViewInput{RawStoryID: s.ID.String(), ViewerID: viewer, SlideIndex: &three})
	require.NoError(t, err)

	assert.Equal(t, 1, views.Count())
	assert.Equal(t, first.View.ID, second.View.ID)
	assert.Equal(t, t0, second.View.ViewedAt)
	require.NotNil(t, second.View.SlideIndex)
	assert.Equal(t, 3, *second.View.SlideIndex)

	third, err := uc.Execute(context.Background(), RecordViewInput{RawStoryID: s.ID.String(), ViewerID: viewer})
	require.NoError(t, err)
	assert.Nil(t, third.View.SlideIndex)
}

func TestRecordViewErrors(t *testing.T) {
	uc := NewRecordViewUseCase(memstore.NewStories(), memstore.NewViews(), memstore.NewPublisher(), testclock.NewClock(t0), logger.NewNop())

	_, err := uc.Execute(context.Background(), RecordViewInput{RawStoryID: "not-an-id", ViewerID: uuid.New()})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = uc.Execute(context.Background(), RecordViewInput{RawStoryID: uuid.NewString(), ViewerID: uuid.New()})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	neg := -1
	_, err = uc.Execute(context.Background(), RecordViewInput{RawStoryID: uuid.NewString(), ViewerID: uuid.New(), SlideIndex: &neg})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestGetStory(t *testing.T) {
	stories := memstore.NewStories()
	owner := &user.User{ID: uuid.New(), Username: "alice"}
	uc := NewGetStoryUseCase(stories, memstore.NewUsers(owner), logger.NewNop())

	s, err := story.New(owner.ID, story.VisibilityPublic, []story.MediaSlide{{Order: 1, PublicID: "b"}, {Order: 0, PublicID: "a"}}, t0.Add(-48*time.Hour))
	require.NoError(t, err)
	require.NoError(t, stories.Save(context.Background(), s))

	out, err := uc.Execute(context.Background(), GetStoryInput{StoryID: s.ID})
	require.NoError(t, err, "expired but not yet reclaimed stories are still readable")
	assert.Equal(t, "alice", out.Owner.Username)
	assert.Equal(t, "a", out.Story.Medias[0].PublicID)

	_, err = uc.Execute(context.Background(), GetStoryInput{StoryID: uuid.New()})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListViewers(t *testing.T) {
	stories := memstore.NewStories()
	views := memstore.NewViews()
	owner := uuid.New()
	v1 := &user.User{ID: uuid.New(), Username: "v1"}
	v2 := &user.User{ID: uuid.New(), Username: "v2"}
	uc := NewListViewersUseCase(stories, views, memstore.NewUsers(v1, v2))

	s, err := story.New(owner, story.VisibilityPublic, []story.MediaSlide{{Order: 0, PublicID: "a"}}, t0)
	require.NoError(t, err)
	require.NoError(t, stories.Save(context.Background(), s))
	_, _ = views.Upsert(context.Background(), s.ID, v1.ID, nil, t0)
	_, _ = views.Upsert(context.Background(), s.ID, v2.ID, nil, t0.Add(time.Minute))
	_, _ = views.Upsert(context.Background(), s.ID, uuid.New(), nil, t0.Add(2*time.Minute))

	out, err := uc.Execute(context.Background(), ListViewersInput{StoryID: s.ID, CallerID: owner})
	require.NoError(t, err)
	require.Len(t, out.Viewers, 2)
	assert.Equal(t, "v2", out.Viewers[0].User.Username)

	_, err = uc.Execute(context.Background(), ListViewersInput{StoryID: s.ID, CallerID: v1.ID})
	assert.ErrorIs(t, err, apperror.ErrPermission)
}
