package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"task-lifecycle-api/models"
	"task-lifecycle-api/service"
)

// queryParser reads typed query parameters and collects one FieldError per bad value.
type queryParser struct {
	c      *gin.Context
	fields []service.FieldError
}

func (q *queryParser) reject(field, message, value string) {
	q.fields = append(q.fields, service.FieldError{Field: field, Message: message, RejectedValue: value})
}

func (q *queryParser) err() error {
	if len(q.fields) == 0 {
		return nil
	}
	return &service.ValidationError{Fields: q.fields}
}

func (q *queryParser) int(key string, def int) int {
	raw := strings.TrimSpace(q.c.Query(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.reject(key, "must be an integer", raw)
		return def
	}
	return n
}

func (q *queryParser) bool(key string) bool {
	raw := strings.TrimSpace(q.c.Query(key))
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.reject(key, "must be true or false", raw)
	}
	return b
}

func (q *queryParser) date(key string) *models.Date {
	raw := strings.TrimSpace(q.c.Query(key))
	if raw == "" {
		return nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		q.reject(key, "must be a date in YYYY-MM-DD format", raw)
		return nil
	}
	return &d
}

func (q *queryParser) status() *models.Status {
	raw := strings.TrimSpace(q.c.Query("status"))
	if raw == "" {
		return nil
	}
	s, err := models.ParseStatus(raw)
	if err != nil {
		q.reject("status", err.Error(), raw)
		return nil
	}
	return &s
}

// priorities accepts repeated or comma separated values from both "priority" and "priorities".
func (q *queryParser) priorities() []models.Priority {
	var out []models.Priority
	for _, key := range []string{"priority", "priorities"} {
		for _, raw := range q.c.QueryArray(key) {
			for _, part := range strings.Split(raw, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				p, err := models.ParsePriority(part)
				if err != nil {
					q.reject(key, err.Error(), part)
					continue
				}
				out = append(out, p)
			}
		}
	}
	return out
}

// filter reads the common task filter. overdue=true is resolved against today.
func (q *queryParser) filter(today models.Date) models.TaskFilter {
	f := models.TaskFilter{
		Status:     q.status(),
		Priorities: q.priorities(),
		Keyword:    strings.TrimSpace(q.c.Query("keyword")),
		Assignee:   strings.TrimSpace(q.c.Query("assignee")),
		DueFrom:    q.date("dueFrom"),
		DueTo:      q.date("dueTo"),
	}
	if q.bool("overdue") {
		f.OverdueAsOf = &today
	}
	return f
}

func (q *queryParser) page() models.PageRequest {
	return models.PageRequest{
		Page:      q.int("page", 0),
		Size:      q.int("size", models.DefaultPageSize),
		Sort:      strings.TrimSpace(q.c.Query("sort")),
		Direction: models.SortDirection(strings.TrimSpace(q.c.Query("direction"))),
	}
}
