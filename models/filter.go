package models

import "strings"

// TaskFilter narrows a listing. Zero-valued fields are ignored; the rest combine with AND.
type TaskFilter struct {
	Status     *Status
	Priorities []Priority
	Keyword    string
	Assignee   string
	DueFrom    *Date
	DueTo      *Date
	// OverdueAsOf keeps only open tasks due before this day.
	OverdueAsOf *Date
}

// Matches evaluates the filter in memory. SQL stores translate the same predicates.
func (f TaskFilter) Matches(t *Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, t.Priority) {
		return false
	}
	if kw := strings.ToLower(strings.TrimSpace(f.Keyword)); kw != "" {
		if !strings.Contains(strings.ToLower(t.Title), kw) &&
			!strings.Contains(strings.ToLower(t.Description), kw) {
			return false
		}
	}
	if a := strings.TrimSpace(f.Assignee); a != "" && t.Assignee != a {
		return false
	}
	if f.DueFrom != nil && (t.DueDate == nil || t.DueDate.Before(*f.DueFrom)) {
		return false
	}
	if f.DueTo != nil && (t.DueDate == nil || t.DueDate.After(*f.DueTo)) {
		return false
	}
	if f.OverdueAsOf != nil && !t.Overdue(*f.OverdueAsOf) {
		return false
	}
	return true
}

func containsPriority(ps []Priority, p Priority) bool {
	for _, candidate := range ps {
		if candidate == p {
			return true
		}
	}
	return false
}
