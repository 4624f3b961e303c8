package actuator

import (
	"context"
	"fmt"

	"task-lifecycle-api/service"
)

const (
	StatusUp       = "UP"
	StatusDegraded = "DEGRADED"
	StatusDown     = "DOWN"

	// DegradedOverdueThreshold is the overdue count above which health reports DEGRADED.
	DegradedOverdueThreshold = 10
)

type taskStats interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (service.Stats, error)
}

type Health struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// CheckHealth pings the store and reports task counts. A failing store is DOWN.
func CheckHealth(ctx context.Context, src taskStats) Health {
	if err := src.Ping(ctx); err != nil {
		return Health{Status: StatusDown, Details: map[string]any{"error": "task store unreachable"}}
	}
	stats, err := src.Stats(ctx)
	if err != nil {
		return Health{Status: StatusDown, Details: map[string]any{"error": "task statistics unavailable"}}
	}

	details := map[string]any{
		"totalTasks":   stats.Total,
		"byStatus":     stats.ByStatus,
		"overdueTasks": stats.Overdue,
	}
	status := StatusUp
	if stats.Overdue > 0 {
		details["warning"] = fmt.Sprintf("%d task(s) are overdue", stats.Overdue)
	}
	if stats.Overdue > DegradedOverdueThreshold {
		status = StatusDegraded
	}
	return Health{Status: status, Details: details}
}
