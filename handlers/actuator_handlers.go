package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"task-lifecycle-api/actuator"
	"task-lifecycle-api/events"
	"task-lifecycle-api/service"
	"task-lifecycle-api/store"
)

// Info is reported by /actuator/info.
type Info struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	StoreDriver string `json:"storeDriver"`
	Policy      string `json:"transitionPolicy"`
	Auth        bool   `json:"authEnabled"`
	Cache       bool   `json:"cacheEnabled"`
}

type ActuatorHandler struct {
	tasks   *service.TaskService
	metrics *actuator.Metrics
	bus     *events.Bus
	cache   *store.RedisCache
	info    Info
}

// GET /actuator/health
func (h *ActuatorHandler) Health(c *gin.Context) {
	health := actuator.CheckHealth(c.Request.Context(), h.tasks)
	status := http.StatusOK
	if health.Status == actuator.StatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

// GET /actuator/info
func (h *ActuatorHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, h.info)
}

// GET /actuator/metrics
func (h *ActuatorHandler) Metrics(c *gin.Context) {
	body := gin.H{}
	if h.metrics != nil {
		body["counters"] = h.metrics.Snapshot()
	}
	if h.bus != nil {
		body["events"] = h.bus.Stats()
	}
	if h.cache != nil {
		body["cache"] = h.cache.Stats()
	}
	c.JSON(http.StatusOK, body)
}
