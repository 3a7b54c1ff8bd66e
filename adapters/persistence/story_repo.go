package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/khoahotran/stories-backend/internal/domain/story"
	"github.com/khoahotran/stories-backend/pkg/apperror"
	"github.com/khoahotran/stories-backend/pkg/logger"
	"go.uber.org/zap"
)

type postgresStoryRepo struct {
	db     *pgxpool.Pool
	logger logger.Logger
}

func NewPostgresStoryRepo(db *pgxpool.Pool, logger logger.Logger) story.Repository {
	return &postgresStoryRepo{db: db, logger: logger}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var storyColumns = []string{
	"id", "owner_id", "medias", "visibility", "expires_at",
	"archived", "hide_from", "created_at", "updated_at",
}

func scanStory(row pgx.Row, l logger.Logger) (*story.Story, error) {
	s := &story.Story{}
	var mediasBytes []byte

	err := row.Scan(
		&s.ID, &s.OwnerID, &mediasBytes, &s.Visibility, &s.ExpiresAt,
		&s.Archived, &s.HideFrom, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("story", "")
		}
		return nil, apperror.NewInternal("failed to scan story row", err)
	}

	if err := json.Unmarshal(mediasBytes, &s.Medias); err != nil {
		l.Warn("failed to unmarshal story medias", zap.String("story_id", s.ID.String()), zap.Error(err))
		s.Medias = []story.MediaSlide{}
	}
	if s.HideFrom == nil {
		s.HideFrom = []uuid.UUID{}
	}
	return s, nil
}

func scanStories(rows pgx.Rows, l logger.Logger) ([]*story.Story, error) {
	defer rows.Close()
	stories := make([]*story.Story, 0)
	for rows.Next() {
		s, err := scanStory(rows, l)
		if err != nil {
			return nil, err
		}
		stories = append(stories, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal("error iterating story rows", err)
	}
	return stories, nil
}

func (r *postgresStoryRepo) Save(ctx context.Context, s *story.Story) error {
	mediasBytes, err := json.Marshal(s.Medias)
	if err != nil {
		return apperror.NewInternal("failed to marshal story medias", err)
	}

	query := `
		INSERT INTO stories (id, owner_id, medias, visibility, expires_at, archived, hide_from, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.Exec(ctx, query,
		s.ID, s.OwnerID, mediasBytes, s.Visibility, s.ExpiresAt,
		s.Archived, s.HideFrom, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return apperror.NewInternal("failed to insert story", err)
	}
	return nil
}

func (r *postgresStoryRepo) FindByID(ctx context.Context, id uuid.UUID) (*story.Story, error) {
	query, args, err := psql.Select(storyColumns...).From("stories").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, apperror.NewInternal("failed to build story query", err)
	}

	s, err := scanStory(r.db.QueryRow(ctx, query, args...), r.logger)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NewNotFound("story", id.String())
	}
	return s, err
}

func (r *postgresStoryRepo) FindActiveByIDs(ctx context.Context, ids []uuid.UUID, now time.Time) ([]*story.Story, error) {
	if len(ids) == 0 {
		return []*story.Story{}, nil
	}
	query, args, err := psql.Select(storyColumns...).
		From("stories").
		Where("id = ANY(?)", ids).
		Where(sq.Gt{"expires_at": now}).
		ToSql()
	if err != nil {
		return nil, apperror.NewInternal("failed to build story query", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.NewInternal("failed to query stories by ids", err)
	}
	return scanStories(rows, r.logger)
}

// GroupActiveByOwner runs the tray aggregation in one statement. Story ids are
// ordered newest first within a group; groups by latest story, then owner id.
func (r *postgresStoryRepo) GroupActiveByOwner(ctx context.Context, now time.Time, cursor *story.TrayCursor, limit int) ([]story.OwnerGroup, error) {
	builder := psql.Select(
		"owner_id",
		"array_agg(id ORDER BY created_at DESC, id DESC) AS story_ids",
		"max(created_at) AS latest_created_at",
		"COALESCE(sum(jsonb_array_length(medias)), 0) AS media_count",
	).
		From("stories").
		Where(sq.Gt{"expires_at": now}).
		GroupBy("owner_id").
		OrderBy("latest_created_at DESC", "owner_id ASC").
		Limit(uint64(limit))
	if cursor != nil {
		builder = builder.Having("(max(created_at) < ? OR (max(created_at) = ? AND owner_id > ?))",
			cursor.LatestCreatedAt, cursor.LatestCreatedAt, cursor.OwnerID)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, apperror.NewInternal("failed to build tray query", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.NewInternal("failed to aggregate tray", err)
	}
	defer rows.Close()

	groups := make([]story.OwnerGroup, 0, limit)
	for rows.Next() {
		var g story.OwnerGroup
		var mediaCount int64
		if err := rows.Scan(&g.OwnerID, &g.StoryIDs, &g.LatestCreatedAt, &mediaCount); err != nil {
			return nil, apperror.NewInternal("failed to scan tray row", err)
		}
		g.MediaCount = int(mediaCount)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal("error iterating tray rows", err)
	}
	return groups, nil
}

func (r *postgresStoryRepo) ListExpired(ctx context.Context, now time.Time) ([]*story.Story, error) {
	query, args, err := psql.Select(storyColumns...).
		From("stories").
		Where(sq.LtOrEq{"expires_at": now}).
		OrderBy("expires_at ASC").
		ToSql()
	if err != nil {
		return nil, apperror.NewInternal("failed to build expired story query", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.NewInternal("failed to query expired stories", err)
	}
	return scanStories(rows, r.logger)
}

func (r *postgresStoryRepo) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM stories WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, apperror.NewInternal("failed to delete stories", err)
	}
	return cmdTag.RowsAffected(), nil
}
