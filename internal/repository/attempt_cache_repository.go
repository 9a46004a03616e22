package repository

import (
	"context"
	"encoding/json"
	"errors"
	"staff_training_backend/internal/model"
	"time"

	"github.com/go-redis/redis/v8"
)

// AttemptCacheRepository keeps in-flight attempt sessions in Redis.
type AttemptCacheRepository struct {
	Redis *redis.Client
}

func NewAttemptCacheRepository(rdb *redis.Client) *AttemptCacheRepository {
	return &AttemptCacheRepository{Redis: rdb}
}

func (r *AttemptCacheRepository) Put(ctx context.Context, key model.AttemptKey, session *model.AttemptSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.Redis.Set(ctx, key.String(), data, ttl).Err()
}

func (r *AttemptCacheRepository) Get(ctx context.Context, key model.AttemptKey) (*model.AttemptSession, error) {
	data, err := r.Redis.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session model.AttemptSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *AttemptCacheRepository) Delete(ctx context.Context, key model.AttemptKey) error {
	return r.Redis.Del(ctx, key.String()).Err()
}
