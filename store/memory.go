package store

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"task-lifecycle-api/models"
)

// MemoryStore keeps tasks in a map. Each call is atomic on its own; sequences of calls are not.
type MemoryStore struct {
	tasks  map[int64]*models.Task
	mu     sync.RWMutex
	nextID atomic.Int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[int64]*models.Task),
	}
}

func (s *MemoryStore) Create(_ context.Context, task *models.Task) (*models.Task, error) {
	stored := task.Clone()
	stored.ID = s.nextID.Add(1)
	stored.Version = 0

	s.mu.Lock()
	s.tasks[stored.ID] = stored
	s.mu.Unlock()

	return stored.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*models.Task, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, found := s.tasks[id]
	if !found {
		return nil, false, nil
	}
	return task.Clone(), true, nil
}

func (s *MemoryStore) Put(_ context.Context, task *models.Task) (*models.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, found := s.tasks[task.ID]
	if !found {
		return nil, false, nil
	}
	if current.Version != task.Version {
		return nil, true, ErrVersionConflict
	}

	stored := task.Clone()
	stored.Version++
	stored.CreatedAt = current.CreatedAt
	s.tasks[stored.ID] = stored
	return stored.Clone(), true, nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.tasks[id]; !found {
		return false, nil
	}
	delete(s.tasks, id)
	return true, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*models.Task, error) {
	return s.collect(models.TaskFilter{}), nil
}

func (s *MemoryStore) CountByStatus(_ context.Context, status models.Status) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, task := range s.tasks {
		if task.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListOverdue(_ context.Context, asOf models.Date) ([]*models.Task, error) {
	return s.collect(models.TaskFilter{OverdueAsOf: &asOf}), nil
}

func (s *MemoryStore) Search(_ context.Context, filter models.TaskFilter, page models.PageRequest) (models.Page[*models.Task], error) {
	matched := s.collect(filter)
	slices.SortStableFunc(matched, models.CompareTasks(page.Sort, page.Direction))

	total := int64(len(matched))
	start := max(0, min(page.Offset(), len(matched)))
	end := min(start+page.Size, len(matched))
	return models.NewPage(matched[start:end], page, total), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// collect returns copies of matching tasks ordered by id.
func (s *MemoryStore) collect(filter models.TaskFilter) []*models.Task {
	s.mu.RLock()
	result := make([]*models.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if filter.Matches(task) {
			result = append(result, task.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(result, models.CompareTasks("id", models.SortAsc))
	return result
}
