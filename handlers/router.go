// Package handlers is the HTTP boundary: routing, request decoding and error translation.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"task-lifecycle-api/actuator"
	"task-lifecycle-api/auth"
	"task-lifecycle-api/events"
	"task-lifecycle-api/models"
	"task-lifecycle-api/service"
	"task-lifecycle-api/store"
)

// Dependencies are the collaborators the router needs. JWT and Users are nil when auth is off;
// Cache is nil when reads are not cached.
type Dependencies struct {
	Tasks   *service.TaskService
	JWT     *auth.JWTManager
	Users   *auth.UserDirectory
	Metrics *actuator.Metrics
	Bus     *events.Bus
	Cache   *store.RedisCache
	Info    Info
}

func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), RequestLogger(), Recovery())
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "No route for "+c.Request.Method+" "+c.Request.URL.Path)
	})
	r.NoMethod(func(c *gin.Context) {
		writeError(c, http.StatusMethodNotAllowed, "Method not allowed")
	})

	tasks := NewTaskHandler(deps.Tasks)
	user := RequireRole(deps.JWT, auth.RoleUser, auth.RoleAdmin)
	admin := RequireRole(deps.JWT, auth.RoleAdmin)

	api := r.Group(tasksPath)
	{
		api.GET("", user, tasks.List)
		api.GET("/search", user, tasks.Search)
		api.GET("/overdue", user, tasks.Overdue)
		api.GET("/stats", user, tasks.Stats)
		api.GET("/:id", user, tasks.Get)
		api.POST("", user, tasks.Create)
		api.PUT("/:id", user, tasks.Update)
		api.PATCH("/:id", user, tasks.Update)
		api.DELETE("/:id", admin, tasks.Delete)
		for _, t := range models.Transitions {
			api.POST("/:id/"+string(t), user, tasks.Transition(t))
		}
	}

	if deps.JWT != nil && deps.Users != nil {
		authHandler := NewAuthHandler(deps.JWT, deps.Users)
		r.POST("/api/auth/login", authHandler.Login)
		r.POST("/api/auth/register", authHandler.Register)
	}

	act := &ActuatorHandler{
		tasks:   deps.Tasks,
		metrics: deps.Metrics,
		bus:     deps.Bus,
		cache:   deps.Cache,
		info:    deps.Info,
	}
	r.GET("/actuator/health", act.Health)
	r.GET("/actuator/info", act.Info)
	r.GET("/actuator/metrics", act.Metrics)

	return r
}
