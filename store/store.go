// Package store holds Task records behind one contract with interchangeable backends.
package store

import (
	"context"
	"errors"

	"task-lifecycle-api/models"
)

// ErrVersionConflict is returned by Put when the caller's version is stale.
var ErrVersionConflict = errors.New("task version conflict")

// Store is the Task storage contract. Absent ids are reported through the found flag,
// never as an error; "not found" is the caller's decision.
type Store interface {
	// Create assigns a fresh id and version 0, persists the task and returns the stored copy.
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	Get(ctx context.Context, id int64) (*models.Task, bool, error)
	// Put replaces a record whose stored version equals task.Version and bumps the version.
	Put(ctx context.Context, task *models.Task) (*models.Task, bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]*models.Task, error)
	CountByStatus(ctx context.Context, status models.Status) (int64, error)
	ListOverdue(ctx context.Context, asOf models.Date) ([]*models.Task, error)
	Search(ctx context.Context, filter models.TaskFilter, page models.PageRequest) (models.Page[*models.Task], error)
	Ping(ctx context.Context) error
	Close() error
}
