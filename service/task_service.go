// Package service holds the task use cases: defaults, partial updates, status rules and domain errors.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"task-lifecycle-api/events"
	"task-lifecycle-api/models"
	"task-lifecycle-api/store"
)

// Policy decides whether a plain update may set any status or only follow the state machine.
type Policy string

const (
	PolicyOpen   Policy = "open"
	PolicyStrict Policy = "strict"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyOpen:
		return PolicyOpen, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown transition policy %q, expected open or strict", s)
	}
}

type TaskService struct {
	store  store.Store
	events events.Publisher
	policy Policy
	now    func() time.Time
}

type Option func(*TaskService)

func WithPolicy(p Policy) Option {
	return func(s *TaskService) { s.policy = p }
}

// WithClock replaces time.Now, which also fixes what "today" means for overdue checks.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) { s.now = now }
}

type noopPublisher struct{}

func (noopPublisher) Publish(events.Event) bool { return true }

func NewTaskService(st store.Store, pub events.Publisher, opts ...Option) *TaskService {
	if pub == nil {
		pub = noopPublisher{}
	}
	s := &TaskService{
		store:  st,
		events: pub,
		policy: PolicyOpen,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TaskService) Policy() Policy { return s.policy }

// Today is the calendar day used for overdue checks.
func (s *TaskService) Today() models.Date {
	return models.DateOf(s.now().UTC())
}

func (s *TaskService) Create(ctx context.Context, req CreateTaskRequest) (*models.Task, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task := &models.Task{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      models.StatusCreated,
		Priority:    models.PriorityMedium,
		Assignee:    strings.TrimSpace(req.Assignee),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Status != nil && s.policy == PolicyOpen {
		task.Status, _ = models.ParseStatus(*req.Status)
	}
	if req.Priority != nil {
		task.Priority, _ = models.ParsePriority(*req.Priority)
	}
	if req.DueDate != nil {
		d, _ := models.ParseDate(*req.DueDate)
		task.DueDate = &d
	}

	created, err := s.store.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.publish(events.TaskCreated, created)
	if created.Assignee != "" {
		s.publish(events.TaskAssigned, created)
	}
	return created, nil
}

func (s *TaskService) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	task, found, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %d: %w", id, err)
	}
	if !found {
		return nil, notFound(id)
	}
	return task, nil
}

// Update overwrites only the fields present in req. A version in req must match the stored one.
func (s *TaskService) Update(ctx context.Context, id int64, req UpdateTaskRequest) (*models.Task, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	current, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != nil && *req.Version != current.Version {
		return nil, fmt.Errorf("%w: expected version %d but found %d", ErrConflict, *req.Version, current.Version)
	}

	next := current.Clone()
	if req.Title != nil {
		next.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		next.Description = *req.Description
	}
	if req.Priority != nil {
		next.Priority, _ = models.ParsePriority(*req.Priority)
	}
	if req.DueDate != nil {
		d, _ := models.ParseDate(*req.DueDate)
		next.DueDate = &d
	}
	if req.Assignee != nil {
		next.Assignee = strings.TrimSpace(*req.Assignee)
	}
	if req.Status != nil {
		status, _ := models.ParseStatus(*req.Status)
		if status != current.Status && s.policy == PolicyStrict {
			if _, ok := models.TransitionBetween(current.Status, status); !ok {
				return nil, fmt.Errorf("%w: cannot move a task from %s to %s", ErrIllegalState, current.Status, status)
			}
		}
		next.Status = status
	}

	updated, err := s.save(ctx, next)
	if err != nil {
		return nil, err
	}

	if updated.Assignee != "" && updated.Assignee != current.Assignee {
		s.publish(events.TaskAssigned, updated)
	}
	if updated.Status == models.StatusCompleted && current.Status != models.StatusCompleted {
		s.publish(events.TaskCompleted, updated)
	}
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, id int64) error {
	task, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	found, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	if !found {
		return notFound(id)
	}
	s.publish(events.TaskDeleted, task)
	return nil
}

func (s *TaskService) Start(ctx context.Context, id int64) (*models.Task, error) {
	return s.Transition(ctx, id, models.TransitionStart)
}

func (s *TaskService) Complete(ctx context.Context, id int64) (*models.Task, error) {
	return s.Transition(ctx, id, models.TransitionComplete)
}

func (s *TaskService) Cancel(ctx context.Context, id int64) (*models.Task, error) {
	return s.Transition(ctx, id, models.TransitionCancel)
}

func (s *TaskService) Reopen(ctx context.Context, id int64) (*models.Task, error) {
	return s.Transition(ctx, id, models.TransitionReopen)
}

// Transition applies one state machine edge regardless of the update policy.
func (s *TaskService) Transition(ctx context.Context, id int64, t models.Transition) (*models.Task, error) {
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	status, err := t.Apply(current.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalState, err)
	}

	next := current.Clone()
	next.Status = status
	updated, err := s.save(ctx, next)
	if err != nil {
		return nil, err
	}

	if t == models.TransitionComplete {
		s.publish(events.TaskCompleted, updated)
	}
	return updated, nil
}

// List returns one page of tasks matching filter.
func (s *TaskService) List(ctx context.Context, filter models.TaskFilter, page models.PageRequest) (models.Page[*models.Task], error) {
	page, err := page.Normalize()
	if err != nil {
		return models.Page[*models.Task]{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	result, err := s.store.Search(ctx, filter, page)
	if err != nil {
		return models.Page[*models.Task]{}, fmt.Errorf("failed to list tasks: %w", err)
	}
	return result, nil
}

// Search returns every matching task ordered by id.
func (s *TaskService) Search(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	page := models.PageRequest{Size: models.MaxPageSize, Sort: "id", Direction: models.SortAsc}
	tasks := []*models.Task{}
	for {
		result, err := s.store.Search(ctx, filter, page)
		if err != nil {
			return nil, fmt.Errorf("failed to search tasks: %w", err)
		}
		tasks = append(tasks, result.Items...)
		if len(result.Items) < page.Size || int64(len(tasks)) >= result.TotalItems {
			return tasks, nil
		}
		page.Page++
	}
}

func (s *TaskService) Overdue(ctx context.Context) ([]*models.Task, error) {
	tasks, err := s.store.ListOverdue(ctx, s.Today())
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue tasks: %w", err)
	}
	return tasks, nil
}

type Stats struct {
	Total    int64                   `json:"total"`
	ByStatus map[models.Status]int64 `json:"byStatus"`
	Overdue  int64                   `json:"overdue"`
}

// Stats counts tasks per status. Every status is present, zero when unused.
func (s *TaskService) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: make(map[models.Status]int64, len(models.Statuses))}
	for _, status := range models.Statuses {
		n, err := s.store.CountByStatus(ctx, status)
		if err != nil {
			return Stats{}, fmt.Errorf("failed to count %s tasks: %w", status, err)
		}
		stats.ByStatus[status] = n
		stats.Total += n
	}

	overdue, err := s.Overdue(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.Overdue = int64(len(overdue))
	return stats, nil
}

func (s *TaskService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *TaskService) save(ctx context.Context, task *models.Task) (*models.Task, error) {
	task.UpdatedAt = s.now().UTC()
	updated, found, err := s.store.Put(ctx, task)
	if errors.Is(err, store.ErrVersionConflict) {
		return nil, fmt.Errorf("%w: task %d changed while it was being updated", ErrConflict, task.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save task %d: %w", task.ID, err)
	}
	if !found {
		return nil, notFound(task.ID)
	}
	return updated, nil
}

func (s *TaskService) publish(t events.Type, task *models.Task) {
	s.events.Publish(events.New(t, task, s.now()))
}
