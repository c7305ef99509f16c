package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	apperrors "authapi/internal/errors"
)

func serve(t *testing.T, production bool, handlerErr error) (*httptest.ResponseRecorder, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zap.New(core), production)
	e.Use(echomw.RequestID())
	e.GET("/fail", func(c echo.Context) error { return handlerErr })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	return rec, logs
}

func TestErrorHandler_OperationalError(t *testing.T) {
	rec, logs := serve(t, true, apperrors.Conflict("User already exists"))

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeError(t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, "CONFLICT", body.Code)
	assert.Equal(t, "User already exists", body.Message)
	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), body.RequestID)
	assert.Empty(t, body.Stack)
	assert.Equal(t, 0, logs.Len())
}

func TestErrorHandler_InternalHiddenInProduction(t *testing.T) {
	rec, logs := serve(t, true, errors.New("dial tcp 10.0.0.5:3306: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "Something went wrong", body.Message)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Empty(t, body.Stack)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "unhandled error", logs.All()[0].Message)
}

func TestErrorHandler_InternalShownInDevelopment(t *testing.T) {
	rec, logs := serve(t, false, errors.New("dial tcp 10.0.0.5:3306: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "Internal Server Error", body.Message)
	assert.Contains(t, body.Stack, "10.0.0.5")
	assert.Equal(t, 1, logs.Len())
}

func TestErrorHandler_ValidationErrors(t *testing.T) {
	type payload struct {
		Email string `validate:"required,email"`
	}
	verr := validator.New().Struct(payload{Email: "nope"})
	require.Error(t, verr)

	rec, _ := serve(t, true, verr)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeError(t, rec)
	require.Len(t, body.ErrorSource, 1)
	assert.Equal(t, "Email", body.ErrorSource[0].Path)
	assert.Equal(t, "Invalid email format", body.ErrorSource[0].Message)
}

func TestErrorHandler_UnknownRoute(t *testing.T) {
	core, _ := observer.New(zap.DebugLevel)
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zap.New(core), true)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "NOT_FOUND", body.Code)
	require.NotEmpty(t, body.ErrorSource)
	assert.Equal(t, "route", body.ErrorSource[0].Path)
}
