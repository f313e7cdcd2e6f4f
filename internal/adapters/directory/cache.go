package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/models"
	"hiring-pipeline/internal/pipeline"
)

const cacheKey = "directory:interviewers"

// CachedDirectory keeps the last listing of the wrapped directory in Redis
// for ttl. Cache failures fall through to the source.
type CachedDirectory struct {
	source pipeline.DirectoryService
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedDirectory(source pipeline.DirectoryService, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedDirectory {
	return &CachedDirectory{
		source: source,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "directory_cache"}),
	}
}

func (c *CachedDirectory) ListInterviewers(ctx context.Context) ([]models.Interviewer, error) {
	raw, err := c.redis.Get(ctx, cacheKey).Bytes()
	switch {
	case err == nil:
		var list []models.Interviewer
		if jsonErr := json.Unmarshal(raw, &list); jsonErr == nil {
			return list, nil
		}
		c.logger.Warn("discarding unreadable directory cache", nil)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("directory cache read failed", map[string]interface{}{"error": err.Error()})
	}

	list, err := c.source.ListInterviewers(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(list)
	if err != nil {
		return list, nil
	}
	if err := c.redis.Set(ctx, cacheKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("directory cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return list, nil
}

// Invalidate drops the cached listing, e.g. after the interviewer table
// changed.
func (c *CachedDirectory) Invalidate(ctx context.Context) error {
	return c.redis.Del(ctx, cacheKey).Err()
}
