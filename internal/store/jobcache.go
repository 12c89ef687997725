package store

import (
	"context"

	"github.com/rampellisaieshwar/GravityEdits/internal/jobs"
)

// JobCache persists job snapshots so status lookups survive a restart. It
// wraps another cache (memory or redis) and writes through to both.
type JobCache struct {
	repo Repository
	next jobs.StatusCache
}

func NewJobCache(repo Repository, next jobs.StatusCache) *JobCache {
	if next == nil {
		next = jobs.NewMemoryCache()
	}
	return &JobCache{repo: repo, next: next}
}

func (c *JobCache) Put(ctx context.Context, j jobs.Job) error {
	if err := c.next.Put(ctx, j); err != nil {
		return err
	}
	return c.repo.UpsertJob(ctx, j)
}

func (c *JobCache) Get(ctx context.Context, id string) (jobs.Job, bool, error) {
	j, ok, err := c.next.Get(ctx, id)
	if err == nil && ok {
		return j, true, nil
	}
	stored, serr := c.repo.GetJob(ctx, id)
	if serr != nil {
		return jobs.Job{}, false, serr
	}
	if stored == nil {
		return jobs.Job{}, false, err
	}
	return *stored, true, nil
}
