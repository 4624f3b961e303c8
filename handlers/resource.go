package handlers

import (
	"fmt"
	"net/http"

	"task-lifecycle-api/models"
)

const tasksPath = "/api/tasks"

type Link struct {
	Href   string `json:"href"`
	Method string `json:"method,omitempty"`
}

// TaskResource is a task plus the links a client may follow from its current status.
type TaskResource struct {
	*models.Task
	Links map[string]Link `json:"_links"`
}

func taskPath(id int64) string {
	return fmt.Sprintf("%s/%d", tasksPath, id)
}

func toResource(t *models.Task) TaskResource {
	self := taskPath(t.ID)
	links := map[string]Link{
		"self":   {Href: self, Method: http.MethodGet},
		"tasks":  {Href: tasksPath, Method: http.MethodGet},
		"update": {Href: self, Method: http.MethodPut},
		"delete": {Href: self, Method: http.MethodDelete},
	}
	for _, tr := range models.AllowedTransitions(t.Status) {
		links[string(tr)] = Link{Href: self + "/" + string(tr), Method: http.MethodPost}
	}
	return TaskResource{Task: t, Links: links}
}

func toResources(tasks []*models.Task) []TaskResource {
	out := make([]TaskResource, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toResource(t))
	}
	return out
}
