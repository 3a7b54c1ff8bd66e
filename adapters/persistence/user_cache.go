package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/khoahotran/stories-backend/internal/domain/user"
	"github.com/khoahotran/stories-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const userCachePrefix = "stories:user:"

// cachedUserRepo reads profiles through Redis. Cache errors fall back to the
// wrapped repository.
type cachedUserRepo struct {
	next   user.Repository
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedUserRepo(next user.Repository, rdb *redis.Client, ttl time.Duration, logger logger.Logger) user.Repository {
	return &cachedUserRepo{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func userCacheKey(id uuid.UUID) string {
	return userCachePrefix + id.String()
}

func (r *cachedUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	raw, err := r.rdb.Get(ctx, userCacheKey(id)).Bytes()
	if err == nil {
		u := &user.User{}
		if jsonErr := json.Unmarshal(raw, u); jsonErr == nil {
			return u, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Warn("user cache read failed", zap.String("user_id", id.String()), zap.Error(err))
	}

	u, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, u)
	return u, nil
}

func (r *cachedUserRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*user.User, error) {
	out := make(map[uuid.UUID]*user.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userCacheKey(id)
	}

	missing := ids
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		r.logger.Warn("user cache mget failed", zap.Error(err))
	} else {
		missing = make([]uuid.UUID, 0)
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			u := &user.User{}
			if err := json.Unmarshal([]byte(s), u); err != nil {
				missing = append(missing, ids[i])
				continue
			}
			out[ids[i]] = u
		}
	}

	if len(missing) == 0 {
		return out, nil
	}
	loaded, err := r.next.FindByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	pipe := r.rdb.Pipeline()
	for id, u := range loaded {
		out[id] = u
		if raw, err := json.Marshal(u); err == nil {
			pipe.Set(ctx, userCacheKey(id), raw, r.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("user cache write failed", zap.Error(err))
	}
	return out, nil
}

func (r *cachedUserRepo) store(ctx context.Context, u *user.User) {
	raw, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, userCacheKey(u.ID), raw, r.ttl).Err(); err != nil {
		r.logger.Warn("user cache write failed", zap.String("user_id", u.ID.String()), zap.Error(err))
	}
}
