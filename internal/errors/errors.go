package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// ErrorCategory defines the type of error for proper handling
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryStorage       ErrorCategory = "storage"
	CategoryInternal      ErrorCategory = "internal"
	CategoryConfiguration ErrorCategory = "configuration"
)

// AppError wraps an errbuilder error with category and HTTP status. The core
// scoring engine never produces these: missing data, malformed numerics and
// unknown sources are recovered locally there. AppError exists for the API
// boundary, where a bad call contract or a storage failure must become a
// well-formed HTTP response.
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	codeStr := "UNKNOWN_ERROR"
	switch e.ErrBuilder.ErrCode() {
	case errbuilder.CodeInvalidArgument:
		codeStr = "VALIDATION_ERROR"
	case errbuilder.CodeNotFound:
		codeStr = "NOT_FOUND"
	case errbuilder.CodeUnavailable:
		codeStr = "STORAGE_ERROR"
	case errbuilder.CodeInternal:
		codeStr = "INTERNAL_ERROR"
	case errbuilder.CodeFailedPrecondition:
		codeStr = "CONFIGURATION_ERROR"
	}

	return fmt.Sprintf("[%s] %s", codeStr, e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// NewAppError creates an AppError from errbuilder with additional context
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

// NewValidationError creates a validation error naming the violated
// precondition
func NewValidationError(message string, details ...interface{}) *AppError {
	if len(details) > 0 {
		message = fmt.Sprintf("%s: %v", message, details[0])
	}

	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewNotFoundError creates a not-found error for an absent resource
func NewNotFoundError(resource, id string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("%s not found: %s", resource, id))

	return NewAppError(builder, CategoryNotFound, http.StatusNotFound)
}

// NewStorageError wraps a persistence failure
func NewStorageError(operation string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(fmt.Sprintf("storage operation failed: %s", operation)).
		WithCause(cause)

	return NewAppError(builder, CategoryStorage, http.StatusServiceUnavailable)
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message).
		WithCause(cause)

	return NewAppError(builder, CategoryInternal, http.StatusInternalServerError)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(message)

	return NewAppError(builder, CategoryConfiguration, http.StatusInternalServerError)
}

// ToAppError converts any error to an AppError
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return NewInternalError("unexpected error", err)
}

// LogError logs an AppError with request context
func LogError(c *gin.Context, appErr *AppError) {
	slog.Error("Request failed",
		"category", string(appErr.Category),
		"message", appErr.ErrBuilder.Msg,
		"http_status", appErr.HTTPStatus,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"ip", c.ClientIP(),
	)
}

// ErrorHandler is a Gin middleware that provides centralized error handling
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := ToAppError(c.Errors.Last().Err)
		LogError(c, appErr)

		if !c.Writer.Written() {
			c.JSON(appErr.HTTPStatus, gin.H{
				"error":    appErr.Error(),
				"category": appErr.Category,
			})
		}
	}
}

// RecoveryHandler provides panic recovery with structured error responses
func RecoveryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic recovered",
					"panic", fmt.Sprintf("%v", r),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":    "internal server error",
					"category": CategoryInternal,
				})
			}
		}()

		c.Next()
	}
}

// WrapError wraps an error with additional context
func WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	contextMsg := fmt.Sprintf(message, args...)
	return fmt.Errorf("%s: %w", contextMsg, err)
}

// SafeClose safely closes a resource and logs any errors
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}

	if err := closer.Close(); err != nil {
		slog.Warn("Failed to close resource",
			"resource", resourceName,
			"error", err)
	}
}
