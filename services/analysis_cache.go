package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/valargen/rateleads-api/models"
)

// analysisCacheTTL bounds how long a cached analysis stays valid. Provider
// pricing reprices intraday, so stale results are worse than recomputing.
const analysisCacheTTL = 30 * time.Minute

// AnalysisCache stores computed analysis results in Redis so the UI can
// revisit them by cache key without re-hitting the pricing provider.
type AnalysisCache struct {
	client *redis.Client
}

func NewAnalysisCache(addr string) *AnalysisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &AnalysisCache{client: rdb}
}

func analysisCacheKey(cacheKey, customerKey string) string {
	return fmt.Sprintf("analysis:%s:%s", cacheKey, customerKey)
}

func (c *AnalysisCache) Put(ctx context.Context, cacheKey, customerKey string, result *models.AnalysisResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode analysis result: %w", err)
	}
	return c.client.Set(ctx, analysisCacheKey(cacheKey, customerKey), encoded, analysisCacheTTL).Err()
}

// Get returns the cached result, or (nil, nil) when the key is unknown or
// expired.
func (c *AnalysisCache) Get(ctx context.Context, cacheKey, customerKey string) (*models.AnalysisResult, error) {
	val, err := c.client.Get(ctx, analysisCacheKey(cacheKey, customerKey)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, fmt.Errorf("decode cached analysis: %w", err)
	}
	return &result, nil
}

func (c *AnalysisCache) Close() error {
	return c.client.Close()
}
