package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Kind classifies an AppError.
type Kind string

const (
	KindBadRequest          Kind = "BAD_REQUEST"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindForbidden           Kind = "FORBIDDEN"
	KindNotFound            Kind = "NOT_FOUND"
	KindConflict            Kind = "CONFLICT"
	KindUnprocessableEntity Kind = "UNPROCESSABLE_ENTITY"
	KindTooManyRequests     Kind = "TOO_MANY_REQUESTS"
	KindEmailDeliveryFailed Kind = "EMAIL_DELIVERY_FAILED"
	KindInternal            Kind = "INTERNAL_ERROR"
)

var kindStatus = map[Kind]int{
	KindBadRequest:          http.StatusBadRequest,
	KindUnauthorized:        http.StatusUnauthorized,
	KindForbidden:           http.StatusForbidden,
	KindNotFound:            http.StatusNotFound,
	KindConflict:            http.StatusConflict,
	KindUnprocessableEntity: http.StatusUnprocessableEntity,
	KindTooManyRequests:     http.StatusTooManyRequests,
	KindEmailDeliveryFailed: http.StatusInternalServerError,
	KindInternal:            http.StatusInternalServerError,
}

// FieldError points at the input that caused a failure.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Success     bool         `json:"success"`
	Code        string       `json:"code"`
	Message     string       `json:"message"`
	ErrorSource []FieldError `json:"errorSource"`
	RequestID   string       `json:"requestId,omitempty"`
	Stack       string       `json:"stack,omitempty"`
}

// AppError is the error type every layer returns to the HTTP boundary.
// Operational errors are expected failures whose message is safe to show;
// non-operational ones are bugs or infrastructure failures.
type AppError struct {
	Kind        Kind
	StatusCode  int
	Code        string
	Message     string
	ErrorSource []FieldError
	Operational bool
	Err         error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so sentinel-style comparisons work with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Kind == t.Kind
}

// WithCode returns a copy carrying a more specific machine-readable code.
func (e *AppError) WithCode(code string) *AppError {
	cp := *e
	cp.Code = code
	return &cp
}

// Wrap returns a copy that records cause for logging.
func (e *AppError) Wrap(cause error) *AppError {
	cp := *e
	cp.Err = cause
	return &cp
}

// ToErrorResponse converts an AppError to ErrorResponse.
func (e *AppError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Success:     false,
		Code:        e.Code,
		Message:     e.Message,
		ErrorSource: e.ErrorSource,
	}
}

// New creates an operational error of the given kind.
func New(kind Kind, message string, source ...FieldError) *AppError {
	if len(source) == 0 {
		source = []FieldError{{Path: "general", Message: message}}
	}
	return &AppError{
		Kind:        kind,
		StatusCode:  kindStatus[kind],
		Code:        string(kind),
		Message:     message,
		ErrorSource: source,
		Operational: true,
	}
}

func BadRequest(message string, source ...FieldError) *AppError {
	return New(KindBadRequest, message, source...)
}

func Unauthorized(message string, source ...FieldError) *AppError {
	return New(KindUnauthorized, message, source...)
}

func Forbidden(message string, source ...FieldError) *AppError {
	return New(KindForbidden, message, source...)
}

func NotFound(message string, source ...FieldError) *AppError {
	return New(KindNotFound, message, source...)
}

func Conflict(message string, source ...FieldError) *AppError {
	return New(KindConflict, message, source...)
}

func UnprocessableEntity(message string, source ...FieldError) *AppError {
	return New(KindUnprocessableEntity, message, source...)
}

func TooManyRequests(message string, source ...FieldError) *AppError {
	return New(KindTooManyRequests, message, source...)
}

func EmailDeliveryFailed(message string) *AppError {
	return New(KindEmailDeliveryFailed, message, FieldError{Path: "email", Message: message})
}

// Internal wraps an unexpected failure. It is never shown verbatim in production.
func Internal(err error) *AppError {
	e := New(KindInternal, "Internal Server Error")
	e.Operational = false
	e.Err = err
	return e
}

// KindOf returns the kind of err, or KindInternal when err is not an AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// DuplicateKeyError is implemented by store errors reporting a unique violation.
type DuplicateKeyError interface {
	error
	DuplicateField() string
}

// Normalize converts any error reaching the HTTP boundary into an AppError.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fromValidation(verrs)
	}

	var dup DuplicateKeyError
	if errors.As(err, &dup) {
		field := dup.DuplicateField()
		return Conflict("Duplicate key error", FieldError{Path: field, Message: "Duplicate value"})
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return BadRequest("Malformed JSON body", FieldError{
			Path:    "body",
			Message: fmt.Sprintf("invalid JSON at offset %d", syntaxErr.Offset),
		})
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return fromEchoHTTPError(httpErr)
	}

	return Internal(err)
}

func fromValidation(verrs validator.ValidationErrors) *AppError {
	source := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		source = append(source, FieldError{
			Path:    fieldPath(fe),
			Message: validationMessage(fe),
		})
	}
	return UnprocessableEntity("Validation failed", source...)
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", fe.Field(), fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must contain only digits", fe.Field())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	case "eqfield":
		return "Passwords do not match"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
	}
}

func fromEchoHTTPError(he *echo.HTTPError) *AppError {
	message := http.StatusText(he.Code)
	switch m := he.Message.(type) {
	case string:
		message = m
	case error:
		message = m.Error()
	}

	kind := KindBadRequest
	if he.Code >= http.StatusInternalServerError {
		kind = KindInternal
	}
	for k, status := range kindStatus {
		if status == he.Code && k != KindEmailDeliveryFailed {
			kind = k
			break
		}
	}

	e := New(kind, message)
	e.StatusCode = he.Code
	if he.Code == http.StatusNotFound {
		e.ErrorSource = []FieldError{{Path: "route", Message: message}}
	}
	if he.Code >= http.StatusInternalServerError {
		e.Operational = false
		e.Err = he
	}
	return e
}
