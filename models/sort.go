package models

import (
	"cmp"
	"strings"
)

// CompareTasks orders two tasks by a sort field; ties fall back to id so paging is stable.
// Tasks without a due date sort after those with one.
func CompareTasks(field string, dir SortDirection) func(a, b *Task) int {
	return func(a, b *Task) int {
		c := compareField(field, a, b)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if dir == SortDesc {
			return -c
		}
		return c
	}
}

func compareField(field string, a, b *Task) int {
	switch field {
	case "title":
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case "status":
		return cmp.Compare(statusRank(a.Status), statusRank(b.Status))
	case "priority":
		return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
	case "dueDate":
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return a.DueDate.Compare(b.DueDate.Time)
	case "createdAt":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return cmp.Compare(a.ID, b.ID)
}

func statusRank(s Status) int {
	for i, known := range Statuses {
		if known == s {
			return i
		}
	}
	return -1
}
