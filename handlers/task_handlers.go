package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"task-lifecycle-api/models"
	"task-lifecycle-api/service"
)

type TaskHandler struct {
	tasks *service.TaskService
}

func NewTaskHandler(tasks *service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

func parseID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "Invalid task ID",
			service.FieldError{Field: "id", Message: "must be a positive integer", RejectedValue: raw})
		return 0, false
	}
	return id, true
}

// GET /api/tasks
func (h *TaskHandler) List(c *gin.Context) {
	q := &queryParser{c: c}
	filter := q.filter(h.tasks.Today())
	page := q.page()
	if err := q.err(); err != nil {
		handleServiceError(c, err)
		return
	}

	result, err := h.tasks.List(c.Request.Context(), filter, page)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MapPage(result, toResource))
}

// GET /api/tasks/search
func (h *TaskHandler) Search(c *gin.Context) {
	q := &queryParser{c: c}
	filter := q.filter(h.tasks.Today())
	if err := q.err(); err != nil {
		handleServiceError(c, err)
		return
	}

	tasks, err := h.tasks.Search(c.Request.Context(), filter)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResources(tasks))
}

// GET /api/tasks/overdue
func (h *TaskHandler) Overdue(c *gin.Context) {
	tasks, err := h.tasks.Overdue(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResources(tasks))
}

// GET /api/tasks/stats
func (h *TaskHandler) Stats(c *gin.Context) {
	stats, err := h.tasks.Stats(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GET /api/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	task, err := h.tasks.FindByID(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResource(task))
}

// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req service.CreateTaskRequest
	if !bindBody(c, &req) {
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.Header("Location", taskPath(task.ID))
	c.JSON(http.StatusCreated, toResource(task))
}

// PUT and PATCH /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req service.UpdateTaskRequest
	if !bindBody(c, &req) {
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), id, req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResource(task))
}

// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Transition serves POST /api/tasks/:id/{start,complete,cancel,reopen}.
func (h *TaskHandler) Transition(t models.Transition) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		task, err := h.tasks.Transition(c.Request.Context(), id, t)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, toResource(task))
	}
}
