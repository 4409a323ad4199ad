package cache

import (
	"context"
	"testing"
	"time"

	"DMPlayer/model"
)

func TestDisabledCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	c := NewProjectCache(nil, 0)
	if c.Enabled() {
		t.Fatal("nil client should disable the cache")
	}
	if c.ttl != 5*time.Minute {
		t.Fatalf("default ttl = %v", c.ttl)
	}
	if err := c.Set(ctx, &model.ProjectDetail{Project: model.Project{ID: "p1"}}); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(ctx, "p1")
	if err != nil || got != nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if err := c.Invalidate(ctx, "p1"); err != nil {
		t.Fatal(err)
	}

	var nilCache *ProjectCache
	if nilCache.Enabled() {
		t.Fatal("nil cache reported enabled")
	}
}

func TestGetProjectKey(t *testing.T) {
	if got := GetProjectKey("abc"); got != "project:abc:detail" {
		t.Fatalf("key = %q", got)
	}
}
