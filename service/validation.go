package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"task-lifecycle-api/models"
)

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	Title       string  `json:"title" validate:"notblank,max=255"`
	Description string  `json:"description" validate:"max=1000"`
	Status      *string `json:"status" validate:"omitempty,status"`
	Priority    *string `json:"priority" validate:"omitempty,priority"`
	DueDate     *string `json:"dueDate" validate:"omitempty,date"`
	Assignee    string  `json:"assignee" validate:"max=100"`
}

// UpdateTaskRequest is a partial update; nil fields leave the task untouched.
type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Status      *string `json:"status" validate:"omitempty,status"`
	Priority    *string `json:"priority" validate:"omitempty,priority"`
	DueDate     *string `json:"dueDate" validate:"omitempty,date"`
	Assignee    *string `json:"assignee" validate:"omitempty,max=100"`
	Version     *int64  `json:"version" validate:"omitempty,min=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	mustRegister(v, "notblank", validators.NotBlank)
	mustRegister(v, "status", func(fl validator.FieldLevel) bool {
		_, err := models.ParseStatus(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "priority", func(fl validator.FieldLevel) bool {
		_, err := models.ParsePriority(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "date", func(fl validator.FieldLevel) bool {
		_, err := models.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// validateRequest runs the struct tags and converts failures into a *ValidationError.
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate request: %w", err)
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:         fe.Field(),
			Message:       fieldMessage(fe),
			RejectedValue: fe.Value(),
		})
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank":
		return "must not be blank"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "status":
		return "must be one of " + joinNames(models.Statuses)
	case "priority":
		return "must be one of " + joinNames(models.Priorities)
	case "date":
		return "must be a date in YYYY-MM-DD format"
	}
	return "is invalid"
}

func joinNames[T ~string](values []T) string {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}
