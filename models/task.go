package models

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusCreated, StatusInProgress, StatusCompleted, StatusCancelled}

// ParseStatus is case-insensitive. TODO and PENDING are accepted as names for CREATED.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CREATED", "TODO", "PENDING":
		return StatusCreated, nil
	case "IN_PROGRESS", "IN-PROGRESS", "INPROGRESS":
		return StatusInProgress, nil
	case "COMPLETED", "DONE":
		return StatusCompleted, nil
	case "CANCELLED", "CANCELED":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Terminal reports whether no further transition is expected in normal flow.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityUrgent   Priority = "URGENT"
	PriorityCritical Priority = "CRITICAL"
)

// Priorities lists every priority from least to most pressing.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent, PriorityCritical}

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if p.Rank() < 0 {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// Rank orders priorities for sorting. Unknown values rank -1.
func (p Priority) Rank() int {
	for i, known := range Priorities {
		if known == p {
			return i
		}
	}
	return -1
}

func (p *Priority) UnmarshalText(b []byte) error {
	parsed, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	DueDate     *Date     `json:"dueDate,omitempty"`
	Assignee    string    `json:"assignee,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Overdue reports whether the task is past due on the given day and still open.
func (t *Task) Overdue(today Date) bool {
	return t.DueDate != nil && t.DueDate.Before(today) && !t.Status.Terminal()
}

// Clone returns a deep copy so callers never share a DueDate pointer with the store.
func (t *Task) Clone() *Task {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	return &c
}
