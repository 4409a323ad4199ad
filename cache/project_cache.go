package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"DMPlayer/model"

	"github.com/go-redis/redis/v8"
)

// ProjectCache 缓存项目详情快照（含音轨和提示点）
// client 为 nil 时所有操作都是空操作
type ProjectCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProjectCache creates a cache. A nil client disables caching.
func NewProjectCache(client *redis.Client, ttl time.Duration) *ProjectCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProjectCache{client: client, ttl: ttl}
}

// GetProjectKey 生成项目详情的Redis键
func GetProjectKey(projectID string) string {
	return fmt.Sprintf("project:%s:detail", projectID)
}

// Enabled reports whether a Redis client is configured.
func (c *ProjectCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns nil, nil on a miss.
func (c *ProjectCache) Get(ctx context.Context, projectID string) (*model.ProjectDetail, error) {
	if !c.Enabled() {
		return nil, nil
	}
	data, err := c.client.Get(ctx, GetProjectKey(projectID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project cache: %w", err)
	}

	var detail model.ProjectDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		// 损坏的缓存直接丢弃
		c.client.Del(ctx, GetProjectKey(projectID))
		return nil, nil
	}
	return &detail, nil
}

func (c *ProjectCache) Set(ctx context.Context, detail *model.ProjectDetail) error {
	if !c.Enabled() || detail == nil {
		return nil
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal project detail: %w", err)
	}
	if err := c.client.Set(ctx, GetProjectKey(detail.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set project cache: %w", err)
	}
	return nil
}

// Invalidate 在项目、音轨或提示点变更后调用
func (c *ProjectCache) Invalidate(ctx context.Context, projectID string) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Del(ctx, GetProjectKey(projectID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate project cache: %w", err)
	}
	return nil
}
