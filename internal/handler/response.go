package handler

import (
	"github.com/labstack/echo/v4"

	apperrors "authapi/internal/errors"
)

// Response is the success envelope returned by every endpoint.
type Response struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Meta       interface{} `json:"meta,omitempty"`
	RequestID  string      `json:"requestId,omitempty"`
}

func respond(c echo.Context, status int, message string, data interface{}) error {
	return respondWithMeta(c, status, message, data, nil)
}

func respondWithMeta(c echo.Context, status int, message string, data, meta interface{}) error {
	return c.JSON(status, Response{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Data:       data,
		Meta:       meta,
		RequestID:  c.Response().Header().Get(echo.HeaderXRequestID),
	})
}

var errInvalidBody = apperrors.BadRequest("Invalid request body",
	apperrors.FieldError{Path: "body", Message: "Request body must be valid JSON"}).WithCode("INVALID_BODY")

// bindAndValidate decodes the request into req and runs struct validation.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errInvalidBody.Wrap(err)
	}
	return c.Validate(req)
}
