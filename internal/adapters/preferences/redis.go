// Package preferences persists per-job view preferences in Redis or in a
// local SQLite file.
package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/models"
)

const redisKeyPrefix = "pipeline:prefs:"

func redisKey(jobID int64) string {
	return redisKeyPrefix + strconv.FormatInt(jobID, 10)
}

// RedisStore keeps one JSON document per job. Keys never expire.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, jobID int64) (models.UIState, bool, error) {
	raw, err := s.client.Get(ctx, redisKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.UIState{}, false, nil
	}
	if err != nil {
		return models.UIState{}, false, apperrors.NewDatabaseQueryFailedError("redis get preferences", err)
	}

	var state models.UIState
	if err := json.Unmarshal(raw, &state); err != nil {
		return models.UIState{}, false, apperrors.NewInternalError("decode preferences", err)
	}
	return state.Normalize(), true, nil
}

func (s *RedisStore) Save(ctx context.Context, jobID int64, state models.UIState) error {
	payload, err := json.Marshal(state.Normalize())
	if err != nil {
		return apperrors.NewInternalError("encode preferences", err)
	}
	if err := s.client.Set(ctx, redisKey(jobID), payload, 0).Err(); err != nil {
		return apperrors.NewDatabaseQueryFailedError("redis set preferences", err)
	}
	return nil
}
