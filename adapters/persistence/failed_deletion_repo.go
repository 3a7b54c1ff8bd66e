package persistence

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/khoahotran/stories-backend/internal/domain/deletion"
	"github.com/khoahotran/stories-backend/pkg/apperror"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

type postgresFailedDeletionRepo struct {
	db     *pgxpool.Pool
	logger logger.Logger
}

func NewPostgresFailedDeletionRepo(db *pgxpool.Pool, logger logger.Logger) deletion.Ledger {
	return &postgresFailedDeletionRepo{db: db, logger: logger}
}

var failedDeletionColumns = []string{
	"id", "public_id", "story_id", "resource_type", "attempts",
	"last_error", "next_attempt_at", "created_at", "updated_at",
}

func scanFailedDeletion(row pgx.Row) (*deletion.FailedDeletion, error) {
	f := &deletion.FailedDeletion{}
	err := row.Scan(
		&f.ID, &f.PublicID, &f.StoryID, &f.ResourceType, &f.Attempts,
		&f.LastError, &f.NextAttemptAt, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("failed deletion", "")
		}
		return nil, apperror.NewInternal("failed to scan failed deletion row", err)
	}
	return f, nil
}

func scanFailedDeletions(rows pgx.Rows) ([]*deletion.FailedDeletion, error) {
	defer rows.Close()
	out := make([]*deletion.FailedDeletion, 0)
	for rows.Next() {
		f, err := scanFailedDeletion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal("error iterating failed deletion rows", err)
	}
	return out, nil
}

func (r *postgresFailedDeletionRepo) FindByPublicID(ctx context.Context, publicID string) (*deletion.FailedDeletion, error) {
	query, args, err := psql.Select(failedDeletionColumns...).
		From("failed_deletions").
		Where(sq.Eq{"public_id": publicID}).
		ToSql()
	if err != nil {
		return nil, apperror.NewInternal("failed to build failed deletion query", err)
	}

	f, err := scanFailedDeletion(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NewNotFound("failed deletion", publicID)
	}
	return f, err
}

func (r *postgresFailedDeletionRepo) FindByPublicIDs(ctx context.Context, publicIDs []string) (map[string]*deletion.FailedDeletion, error) {
	out := make(map[string]*deletion.FailedDeletion, len(publicIDs))
	if len(publicIDs) == 0 {
		return out, nil
	}
	query, args, err := psql.Select(failedDeletionColumns...).
		From("failed_deletions").
		Where("public_id = ANY(?)", publicIDs).
		ToSql()
	if err != nil {
		return nil, apperror.NewInternal("failed to build failed deletion query", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.NewInternal("failed to query failed deletions", err)
	}
	found, err := scanFailedDeletions(rows)
	if err != nil {
		return nil, err
	}
	for _, f := range found {
		out[f.PublicID] = f
	}
	return out, nil
}

// Save keeps the original row id and creation time on conflict, and keeps the
// previous story reference when the new one is unknown.
func (r *postgresFailedDeletionRepo) Save(ctx context.Context, f *deletion.FailedDeletion) error {
	query := `
		INSERT INTO failed_deletions (id, public_id, story_id, resource_type, attempts, last_error, next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (public_id) DO UPDATE SET
			story_id = COALESCE(EXCLUDED.story_id, failed_deletions.story_id),
			resource_type = EXCLUDED.resource_type,
			attempts = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error,
			next_attempt_at = EXCLUDED.next_attempt_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		f.ID, f.PublicID, f.StoryID, f.ResourceType, f.Attempts,
		f.LastError, f.NextAttemptAt, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return apperror.NewInternal("failed to upsert failed deletion", err)
	}
	return nil
}

func (r *postgresFailedDeletionRepo) DeleteByPublicID(ctx context.Context, publicID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM failed_deletions WHERE public_id = $1`, publicID)
	if err != nil {
		return apperror.NewInternal("failed to delete failed deletion", err)
	}
	return nil
}

func (r *postgresFailedDeletionRepo) ListDue(ctx context.Context, now time.Time, maxAttempts, limit int, exclude []string) ([]*deletion.FailedDeletion, error) {
	builder := psql.Select(failedDeletionColumns...).
		From("failed_deletions").
		Where(sq.LtOrEq{"next_attempt_at": now}).
		Where(sq.Lt{"attempts": maxAttempts}).
		OrderBy("next_attempt_at ASC").
		Limit(uint64(limit))
	if len(exclude) > 0 {
		builder = builder.Where("NOT (public_id = ANY(?))", exclude)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, apperror.NewInternal("failed to build due deletion query", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.NewInternal("failed to query due deletions", err)
	}
	return scanFailedDeletions(rows)
}

func (r *postgresFailedDeletionRepo) PendingPublicIDs(ctx context.Context, publicIDs []string) ([]string, error) {
	if len(publicIDs) == 0 {
		return []string{}, nil
	}
	rows, err := r.db.Query(ctx, `SELECT public_id FROM failed_deletions WHERE public_id = ANY($1)`, publicIDs)
	if err != nil {
		return nil, apperror.NewInternal("failed to query pending deletions", err)
	}
	defer rows.Close()

	pending := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperror.NewInternal("failed to scan pending deletion", err)
		}
		pending = append(pending, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal("error iterating pending deletions", err)
	}
	return pending, nil
}

func (r *postgresFailedDeletionRepo) List(ctx context.Context, filter deletion.ListFilter) ([]*deletion.FailedDeletion, error) {
	builder := psql.Select(failedDeletionColumns...).
		From("failed_deletions").
		OrderBy("updated_at DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset))
	if filter.StuckOnly {
		builder = builder.Where(sq.GtOrEq{"attempts": filter.MaxAttempts})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, apperror.NewInternal("failed to build failed deletion list query", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.NewInternal("failed to list failed deletions", err)
	}
	return scanFailedDeletions(rows)
}

func (r *postgresFailedDeletionRepo) CountStuck(ctx context.Context, maxAttempts int) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM failed_deletions WHERE attempts >= $1`, maxAttempts).Scan(&n)
	if err != nil {
		return 0, apperror.NewInternal("failed to count stuck deletions", err)
	}
	return n, nil
}
