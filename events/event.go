// Package events delivers task notifications from the service to in-process listeners.
package events

import (
	"time"

	"github.com/google/uuid"

	"task-lifecycle-api/models"
)

type Type string

const (
	TaskCreated   Type = "TASK_CREATED"
	TaskAssigned  Type = "TASK_ASSIGNED"
	TaskCompleted Type = "TASK_COMPLETED"
	TaskDeleted   Type = "TASK_DELETED"
)

type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	TaskID     int64     `json:"taskId"`
	TaskTitle  string    `json:"taskTitle"`
	Assignee   string    `json:"assignee,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// New snapshots the task fields an event carries.
func New(t Type, task *models.Task, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		TaskID:     task.ID,
		TaskTitle:  task.Title,
		Assignee:   task.Assignee,
		OccurredAt: at.UTC(),
	}
}
