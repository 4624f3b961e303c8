package events

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogListener writes one line per event.
type LogListener struct{}

func (LogListener) Handle(_ context.Context, e Event) error {
	log.WithFields(log.Fields{
		"event_id":   e.ID,
		"event_type": e.Type,
		"task_id":    e.TaskID,
		"assignee":   e.Assignee,
	}).Infof("Task event: %s %q", e.Type, e.TaskTitle)
	return nil
}
