package store

import (
	"context"
	"strconv"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"task-lifecycle-api/models"
)

// TaskCache holds task snapshots keyed by id. Implementations must never let a snapshot
// replace a newer version of the same task, and must keep a deleted id deleted.
type TaskCache interface {
	Get(ctx context.Context, id int64) (*models.Task, bool, error)
	// Set is a no-op when the cache already holds task.Version or later, or a deletion.
	Set(ctx context.Context, task *models.Task) error
	// Delete records that the task is gone.
	Delete(ctx context.Context, id int64) error
}

// CachedStore is a read-through decorator. A failing cache degrades to the wrapped store.
// A read that loses a race with a write cannot overwrite the write's snapshot, since the
// cache only moves forward in version.
type CachedStore struct {
	Store
	cache TaskCache
	group singleflight.Group
}

var _ Store = (*CachedStore)(nil)

func NewCachedStore(inner Store, cache TaskCache) *CachedStore {
	return &CachedStore{Store: inner, cache: cache}
}

type lookup struct {
	task  *models.Task
	found bool
}

func (s *CachedStore) Get(ctx context.Context, id int64) (*models.Task, bool, error) {
	task, found, err := s.cache.Get(ctx, id)
	if err != nil {
		log.WithError(err).WithField("task_id", id).Warn("Task cache read failed")
	} else if found {
		return task, true, nil
	}

	v, err, _ := s.group.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		task, found, err := s.Store.Get(ctx, id)
		if err != nil || !found {
			return lookup{found: found}, err
		}
		s.refresh(ctx, task)
		return lookup{task: task, found: true}, nil
	})
	if err != nil {
		return nil, false, err
	}

	res := v.(lookup)
	if !res.found {
		return nil, false, nil
	}
	// callers sharing a flight must not share the pointer
	return res.task.Clone(), true, nil
}

func (s *CachedStore) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	stored, err := s.Store.Create(ctx, task)
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, stored)
	return stored, nil
}

func (s *CachedStore) Put(ctx context.Context, task *models.Task) (*models.Task, bool, error) {
	stored, found, err := s.Store.Put(ctx, task)
	switch {
	case err != nil:
		// the cached copy may be the one that lost the race
		s.reload(ctx, task.ID)
		return stored, found, err
	case !found:
		s.evict(ctx, task.ID)
		return nil, false, nil
	}
	s.refresh(ctx, stored)
	return stored, true, nil
}

func (s *CachedStore) Delete(ctx context.Context, id int64) (bool, error) {
	found, err := s.Store.Delete(ctx, id)
	s.evict(ctx, id)
	return found, err
}

func (s *CachedStore) refresh(ctx context.Context, task *models.Task) {
	if err := s.cache.Set(ctx, task); err != nil {
		log.WithError(err).WithField("task_id", task.ID).Warn("Task cache write failed")
	}
}

// reload copies the stored record into the cache.
func (s *CachedStore) reload(ctx context.Context, id int64) {
	task, found, err := s.Store.Get(ctx, id)
	switch {
	case err != nil:
		log.WithError(err).WithField("task_id", id).Warn("Task cache reload failed")
	case !found:
		s.evict(ctx, id)
	default:
		s.refresh(ctx, task)
	}
}

func (s *CachedStore) evict(ctx context.Context, id int64) {
	if err := s.cache.Delete(ctx, id); err != nil {
		log.WithError(err).WithField("task_id", id).Warn("Task cache eviction failed")
	}
}
