package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"task-lifecycle-api/service"
)

// ErrorResponse is the body of every 4xx and 5xx reply.
type ErrorResponse struct {
	Timestamp   time.Time            `json:"timestamp"`
	Status      int                  `json:"status"`
	Error       string               `json:"error"`
	Message     string               `json:"message"`
	Path        string               `json:"path"`
	FieldErrors []service.FieldError `json:"fieldErrors,omitempty"`
}

func writeError(c *gin.Context, status int, message string, fields ...service.FieldError) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Timestamp:   time.Now().UTC(),
		Status:      status,
		Error:       http.StatusText(status),
		Message:     message,
		Path:        c.Request.URL.Path,
		FieldErrors: fields,
	})
}

// handleServiceError maps domain errors to HTTP replies. Anything unrecognised is a 500
// whose detail stays in the log.
func handleServiceError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(c, http.StatusBadRequest, "Validation failed", verr.Fields...)
	case errors.Is(err, service.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrIllegalState):
		writeError(c, http.StatusConflict, err.Error())
	default:
		log.WithError(err).WithFields(log.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
		}).Error("Unhandled error")
		writeError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// bindBody decodes the JSON body into req. A value of the wrong JSON type is reported as a
// field error; anything else that fails to parse is a plain 400.
func bindBody(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		handleServiceError(c, &service.ValidationError{Fields: []service.FieldError{{
			Field:         typeErr.Field,
			Message:       "must be " + jsonTypeName(typeErr.Type),
			RejectedValue: typeErr.Value,
		}}})
		return false
	}
	writeError(c, http.StatusBadRequest, "Invalid request body")
	return false
}

func jsonTypeName(t reflect.Type) string {
	if t == nil {
		return "a valid value"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Slice, reflect.Array:
		return "an array"
	case reflect.Map, reflect.Struct:
		return "an object"
	}
	return "a valid value"
}
