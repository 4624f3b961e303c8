package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"task-lifecycle-api/actuator"
	"task-lifecycle-api/auth"
	"task-lifecycle-api/database"
	"task-lifecycle-api/events"
	"task-lifecycle-api/models"
	"task-lifecycle-api/service"
	"task-lifecycle-api/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

type testAPI struct {
	router  *gin.Engine
	service *service.TaskService
	bus     *events.Bus
	metrics *actuator.Metrics
}

func newTestAPI(t *testing.T, withAuth bool, opts ...service.Option) *testAPI {
	t.Helper()
	return newTestAPIWithStore(t, store.NewMemoryStore(), withAuth, opts...)
}

func newSQLiteTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	s := store.NewSQLStore(db, database.DriverSQLite)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestAPIWithStore(t *testing.T, st store.Store, withAuth bool, opts ...service.Option) *testAPI {
	t.Helper()
	bus := events.NewBus(64)
	metrics := actuator.NewMetrics()
	bus.Subscribe("metrics", metrics)
	t.Cleanup(func() { bus.Close(context.Background()) })

	opts = append([]service.Option{service.WithClock(func() time.Time { return testNow })}, opts...)
	svc := service.NewTaskService(st, bus, opts...)

	deps := Dependencies{Tasks: svc, Metrics: metrics, Bus: bus, Info: Info{Name: "task-lifecycle-api", StoreDriver: "memory"}}
	if withAuth {
		users, err := auth.NewSeededDirectory(bcrypt.MinCost)
		require.NoError(t, err)
		deps.JWT = auth.NewJWTManager("handler-test-secret", time.Hour)
		deps.Users = users
	}
	return &testAPI{router: NewRouter(deps), service: svc, bus: bus, metrics: metrics}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

type taskBody struct {
	models.Task
	Links map[string]Link `json:"_links"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestEndToEndScenario(t *testing.T) {
	api := newTestAPI(t, false)

	w := api.do(t, http.MethodPost, "/api/tasks", gin.H{"title": "Write design doc"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[taskBody](t, w)
	assert.NotZero(t, created.ID)
	assert.Equal(t, models.StatusCreated, created.Status)
	assert.Equal(t, models.PriorityMedium, created.Priority)
	assert.Equal(t, "/api/tasks/"+strconv.FormatInt(created.ID, 10), w.Header().Get("Location"))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	path := "/api/tasks/" + strconv.FormatInt(created.ID, 10)
	w = api.do(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Write design doc", decode[taskBody](t, w).Title)

	w = api.do(t, http.MethodPut, path, gin.H{"status": "IN_PROGRESS"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[taskBody](t, w)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, "Write design doc", updated.Title)

	w = api.do(t, http.MethodDelete, path, nil, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = api.do(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	errBody := decode[ErrorResponse](t, w)
	assert.Equal(t, 404, errBody.Status)
	assert.Equal(t, "Not Found", errBody.Error)
	assert.Equal(t, path, errBody.Path)
	assert.Contains(t, errBody.Message, strconv.FormatInt(created.ID, 10))
	assert.False(t, errBody.Timestamp.IsZero())

	w = api.do(t, http.MethodDelete, path, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateValidationErrors(t *testing.T) {
	api := newTestAPI(t, false)

	w := api.do(t, http.MethodPost, "/api/tasks", gin.H{"title": "", "priority": "someday"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[ErrorResponse](t, w)
	require.Len(t, body.FieldErrors, 2)
	assert.Equal(t, "title", body.FieldErrors[0].Field)
	assert.Equal(t, "priority", body.FieldErrors[1].Field)
	assert.Equal(t, "someday", body.FieldErrors[1].RejectedValue)

	w = api.do(t, http.MethodPost, "/api/tasks", `{"title": 123}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	body = decode[ErrorResponse](t, w)
	assert.Equal(t, "Validation failed", body.Message)
	require.Len(t, body.FieldErrors, 1)
	assert.Equal(t, "title", body.FieldErrors[0].Field)
	assert.Equal(t, "must be a string", body.FieldErrors[0].Message)
	assert.Equal(t, "number", body.FieldErrors[0].RejectedValue)

	w = api.do(t, http.MethodPost, "/api/tasks", `{"title": `, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	body = decode[ErrorResponse](t, w)
	assert.Equal(t, "Invalid request body", body.Message)
	assert.Empty(t, body.FieldErrors)

	w = api.do(t, http.MethodGet, "/api/tasks/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPartialUpdateAndConflict(t *testing.T) {
	api := newTestAPI(t, false)
	w := api.do(t, http.MethodPost, "/api/tasks", gin.H{"title": "Original", "description": "Y"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	path := w.Header().Get("Location")

	w = api.do(t, http.MethodPatch, path, gin.H{"title": "X", "version": 0}, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[taskBody](t, w)
	assert.Equal(t, "X", body.Title)
	assert.Equal(t, "Y", body.Description)
	assert.Equal(t, int64(1), body.Version)

	w = api.do(t, http.MethodPut, path, gin.H{"title": "stale", "version": 0}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodPut, "/api/tasks/999", gin.H{"title": "ghost"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransitionEndpointsAndLinks(t *testing.T) {
	api := newTestAPI(t, false)
	w := api.do(t, http.MethodPost, "/api/tasks", gin.H{"title": "Flow"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[taskBody](t, w)
	path := w.Header().Get("Location")

	assert.Contains(t, created.Links, "self")
	assert.Contains(t, created.Links, "start")
	assert.Contains(t, created.Links, "cancel")
	assert.NotContains(t, created.Links, "complete")
	assert.Equal(t, Link{Href: path + "/start", Method: http.MethodPost}, created.Links["start"])

	w = api.do(t, http.MethodPost, path+"/complete", nil, "")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Message, "cannot complete")

	w = api.do(t, http.MethodPost, path+"/start", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	started := decode[taskBody](t, w)
	assert.Equal(t, models.StatusInProgress, started.Status)
	assert.Contains(t, started.Links, "complete")
	assert.NotContains(t, started.Links, "start")

	w = api.do(t, http.MethodPost, path+"/complete", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusCompleted, decode[taskBody](t, w).Status)

	w = api.do(t, http.MethodPost, path+"/reopen", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusCreated, decode[taskBody](t, w).Status)

	w = api.do(t, http.MethodPost, "/api/tasks/77/start", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func seed(t *testing.T, api *testAPI, bodies ...gin.H) {
	t.Helper()
	for _, b := range bodies {
		w := api.do(t, http.MethodPost, "/api/tasks", b, "")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func TestListPagination(t *testing.T) {
	api := newTestAPI(t, false)
	for i := 0; i < 5; i++ {
		seed(t, api, gin.H{"title": "task " + strconv.Itoa(i)})
	}

	w := api.do(t, http.MethodGet, "/api/tasks?page=0&size=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[models.Page[taskBody]](t, w)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(5), page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)

	w = api.do(t, http.MethodGet, "/api/tasks?page=9&size=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[models.Page[taskBody]](t, w)
	assert.Empty(t, page.Items)
	assert.Equal(t, int64(5), page.TotalItems)

	w = api.do(t, http.MethodGet, "/api/tasks?sort=title&direction=desc&size=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[models.Page[taskBody]](t, w)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "task 4", page.Items[0].Title)

	for _, bad := range []string{"page=x", "size=1000", "sort=secret", "direction=up", "status=archived"} {
		w = api.do(t, http.MethodGet, "/api/tasks?"+bad, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestListPageFarPastTheEnd(t *testing.T) {
	backends := map[string]func(t *testing.T) store.Store{
		"memory": func(*testing.T) store.Store { return store.NewMemoryStore() },
		"sqlite": newSQLiteTestStore,
	}
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			api := newTestAPIWithStore(t, newStore(t), false)
			for i := 0; i < 3; i++ {
				seed(t, api, gin.H{"title": "task " + strconv.Itoa(i)})
			}

			w := api.do(t, http.MethodGet, "/api/tasks?page=922337203685477581&size=10", nil, "")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			page := decode[models.Page[taskBody]](t, w)
			assert.Empty(t, page.Items)
			assert.Equal(t, int64(3), page.TotalItems)
			assert.Equal(t, 1, page.TotalPages)
		})
	}
}

func TestSearchConjunction(t *testing.T) {
	api := newTestAPI(t, false)
	seed(t, api,
		gin.H{"title": "todo urgent", "priority": "URGENT"},
		gin.H{"title": "todo low", "priority": "LOW"},
		gin.H{"title": "started urgent", "priority": "URGENT", "status": "IN_PROGRESS"},
	)

	w := api.do(t, http.MethodGet, "/api/tasks/search?status=Todo&priority=Urgent", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[[]taskBody](t, w)
	require.Len(t, found, 1)
	assert.Equal(t, "todo urgent", found[0].Title)

	w = api.do(t, http.MethodGet, "/api/tasks/search?priorities=LOW,URGENT&keyword=TODO", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]taskBody](t, w), 2)

	w = api.do(t, http.MethodGet, "/api/tasks/search?overdue=maybe", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOverdueAndStats(t *testing.T) {
	api := newTestAPI(t, false)
	seed(t, api,
		gin.H{"title": "late", "dueDate": "2024-06-01"},
		gin.H{"title": "late but done", "dueDate": "2024-06-01", "status": "COMPLETED"},
		gin.H{"title": "future", "dueDate": "2024-07-01"},
	)

	w := api.do(t, http.MethodGet, "/api/tasks/overdue", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	overdue := decode[[]taskBody](t, w)
	require.Len(t, overdue, 1)
	assert.Equal(t, "late", overdue[0].Title)

	w = api.do(t, http.MethodGet, "/api/tasks/search?overdue=true", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]taskBody](t, w), 1)

	w = api.do(t, http.MethodGet, "/api/tasks/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[service.Stats](t, w)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.ByStatus[models.StatusCreated])
	assert.Equal(t, int64(0), stats.ByStatus[models.StatusCancelled])
	assert.Equal(t, int64(1), stats.Overdue)
}

func login(t *testing.T, api *testAPI, username, password string) string {
	t.Helper()
	w := api.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": username, "password": password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[loginResponse](t, w).Token
}

func TestRoleGuard(t *testing.T) {
	api := newTestAPI(t, true)

	w := api.do(t, http.MethodGet, "/api/tasks", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodGet, "/api/tasks", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": "user", "password": "nope-nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	userToken := login(t, api, "user", "password")
	adminToken := login(t, api, "admin", "admin123")

	w = api.do(t, http.MethodPost, "/api/tasks", gin.H{"title": "guarded"}, userToken)
	require.Equal(t, http.StatusCreated, w.Code)
	path := w.Header().Get("Location")

	w = api.do(t, http.MethodDelete, path, nil, userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodDelete, path, nil, adminToken)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRegister(t *testing.T) {
	api := newTestAPI(t, true)

	w := api.do(t, http.MethodPost, "/api/auth/register", gin.H{"username": "dana", "password": "hunter22"}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(t, http.MethodPost, "/api/auth/register", gin.H{"username": "dana", "password": "hunter22"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodPost, "/api/auth/register", gin.H{"username": "x", "password": "1"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/auth/register", gin.H{"username": "  a  ", "password": "hunter22"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/auth/register", gin.H{"username": "  erin  ", "password": "hunter22"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "erin", decode[map[string]any](t, w)["username"])
	assert.NotEmpty(t, login(t, api, "erin", "hunter22"))

	token := login(t, api, "dana", "hunter22")
	w = api.do(t, http.MethodGet, "/api/tasks", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRoutesAbsentWhenDisabled(t *testing.T) {
	api := newTestAPI(t, false)
	w := api.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": "user", "password": "password"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActuator(t *testing.T) {
	api := newTestAPI(t, false)
	seed(t, api, gin.H{"title": "counted"})

	w := api.do(t, http.MethodGet, "/actuator/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[actuator.Health](t, w)
	assert.Equal(t, actuator.StatusUp, health.Status)
	assert.EqualValues(t, 1, health.Details["totalTasks"])

	w = api.do(t, http.MethodGet, "/actuator/info", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "memory", decode[Info](t, w).StoreDriver)

	require.NoError(t, api.bus.Close(context.Background()))
	w = api.do(t, http.MethodGet, "/actuator/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var metrics struct {
		Counters actuator.Counters `json:"counters"`
		Events   events.BusStats   `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metrics))
	assert.Equal(t, uint64(1), metrics.Counters.TasksCreated)
	assert.Equal(t, uint64(1), metrics.Events.Published)
}

func TestRequestIDIsEchoed(t *testing.T) {
	api := newTestAPI(t, false)
	req := httptest.NewRequest(http.MethodGet, "/actuator/info", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t, false)
	w := api.do(t, http.MethodGet, "/nope", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "/nope", decode[ErrorResponse](t, w).Path)
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, false)
	h := WithCORS(api.router, []string{"http://app.test"})

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://app.test", w.Header().Get("Access-Control-Allow-Origin"))
}
