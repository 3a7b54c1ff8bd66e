package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/khoahotran/stories-backend/internal/domain/storyview"
	"github.com/khoahotran/stories-backend/pkg/apperror"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

type postgresStoryViewRepo struct {
	db     *pgxpool.Pool
	logger logger.Logger
}

func NewPostgresStoryViewRepo(db *pgxpool.Pool, logger logger.Logger) storyview.Repository {
	return &postgresStoryViewRepo{db: db, logger: logger}
}

const storyViewColumns = `id, story_id, viewer_id, viewed_at, slide_index, created_at, updated_at`

func scanStoryView(row pgx.Row) (*storyview.StoryView, error) {
	v := &storyview.StoryView{}
	var slideIndex *int32
	err := row.Scan(&v.ID, &v.StoryID, &v.ViewerID, &v.ViewedAt, &slideIndex, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("story view", "")
		}
		return nil, apperror.NewInternal("failed to scan story view row", err)
	}
	if slideIndex != nil {
		idx := int(*slideIndex)
		v.SlideIndex = &idx
	}
	return v, nil
}

func (r *postgresStoryViewRepo) Upsert(ctx context.Context, storyID, viewerID uuid.UUID, slideIndex *int, now time.Time) (*storyview.StoryView, error) {
	query := `
		INSERT INTO story_views (id, story_id, viewer_id, viewed_at, slide_index, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $4, $4)
		ON CONFLICT (story_id, viewer_id) DO UPDATE SET
			slide_index = EXCLUDED.slide_index,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + storyViewColumns

	var idx *int32
	if slideIndex != nil {
		v := int32(*slideIndex)
		idx = &v
	}
	return scanStoryView(r.db.QueryRow(ctx, query, uuid.New(), storyID, viewerID, now, idx))
}

func (r *postgresStoryViewRepo) ExistsForViewer(ctx context.Context, storyIDs []uuid.UUID, viewerID uuid.UUID) (bool, error) {
	if len(storyIDs) == 0 {
		return false, nil
	}
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM story_views WHERE viewer_id = $1 AND story_id = ANY($2))`
	if err := r.db.QueryRow(ctx, query, viewerID, storyIDs).Scan(&exists); err != nil {
		return false, apperror.NewInternal("failed to check story views", err)
	}
	return exists, nil
}

func (r *postgresStoryViewRepo) ListByStory(ctx context.Context, storyID uuid.UUID) ([]*storyview.StoryView, error) {
	query := `SELECT ` + storyViewColumns + ` FROM story_views WHERE story_id = $1 ORDER BY viewed_at DESC`
	rows, err := r.db.Query(ctx, query, storyID)
	if err != nil {
		return nil, apperror.NewInternal("failed to list story views", err)
	}
	defer rows.Close()

	views := make([]*storyview.StoryView, 0)
	for rows.Next() {
		v, err := scanStoryView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal("error iterating story view rows", err)
	}
	return views, nil
}

func (r *postgresStoryViewRepo) DeleteByStoryIDs(ctx context.Context, storyIDs []uuid.UUID) (int64, error) {
	if len(storyIDs) == 0 {
		return 0, nil
	}
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM story_views WHERE story_id = ANY($1)`, storyIDs)
	if err != nil {
		return 0, apperror.NewInternal("failed to delete story views", err)
	}
	return cmdTag.RowsAffected(), nil
}
