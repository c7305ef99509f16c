package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dupErr struct{ field string }

func (d dupErr) Error() string          { return "duplicate" }
func (d dupErr) DuplicateField() string { return d.field }

func TestNew_DefaultsErrorSource(t *testing.T) {
	err := NotFound("User not found")

	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.True(t, err.Operational)
	assert.Equal(t, []FieldError{{Path: "general", Message: "User not found"}}, err.ErrorSource)
}

func TestAppError_IsMatchesCode(t *testing.T) {
	sentinel := Unauthorized("Email not verified").WithCode("EMAIL_NOT_VERIFIED")
	other := Unauthorized("Invalid credentials").WithCode("INVALID_CREDENTIALS")

	wrapped := fmt.Errorf("login: %w", sentinel)
	assert.True(t, errors.Is(wrapped, sentinel))
	assert.False(t, errors.Is(wrapped, other))
	assert.Equal(t, KindUnauthorized, KindOf(wrapped))
}

func TestInternal_IsNonOperational(t *testing.T) {
	cause := errors.New("db down")
	err := Internal(cause)

	assert.False(t, err.Operational)
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindInternal, KindOf(cause))
}

func TestNormalize(t *testing.T) {
	type payload struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required,min=8"`
	}
	verr := validator.New().Struct(payload{Email: "nope", Password: "short"})
	require.Error(t, verr)

	var syntaxErr error = &json.SyntaxError{Offset: 3}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   Kind
		wantOp     bool
	}{
		{"app error passthrough", Forbidden("Forbidden"), http.StatusForbidden, KindForbidden, true},
		{"validation", verr, http.StatusUnprocessableEntity, KindUnprocessableEntity, true},
		{"duplicate key", dupErr{field: "email"}, http.StatusConflict, KindConflict, true},
		{"json syntax", syntaxErr, http.StatusBadRequest, KindBadRequest, true},
		{"echo not found", echo.ErrNotFound, http.StatusNotFound, KindNotFound, true},
		{"echo 500", echo.NewHTTPError(http.StatusInternalServerError, "boom"), http.StatusInternalServerError, KindInternal, false},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, KindInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantOp, got.Operational)
			assert.NotEmpty(t, got.ErrorSource)
		})
	}
}

func TestNormalize_ValidationPaths(t *testing.T) {
	type payload struct {
		Email string `validate:"required,email"`
	}
	err := Normalize(validator.New().Struct(payload{}))

	require.Len(t, err.ErrorSource, 1)
	assert.Equal(t, "Email", err.ErrorSource[0].Path)
	assert.Equal(t, "Email is required", err.ErrorSource[0].Message)
}

func TestNormalize_Nil(t *testing.T) {
	assert.Nil(t, Normalize(nil))
}
