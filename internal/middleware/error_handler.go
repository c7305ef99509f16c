package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "authapi/internal/errors"
)

// ErrorHandler renders every error as the standard error envelope.
// Non-operational errors are logged; in production their details are replaced.
func ErrorHandler(log *zap.Logger, production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		appErr := apperrors.Normalize(err)
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)

		if !appErr.Operational {
			log.Error("unhandled error",
				zap.String("request_id", requestID),
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
			)
		}

		resp := appErr.ToErrorResponse()
		resp.RequestID = requestID
		status := appErr.StatusCode
		switch {
		case production && !appErr.Operational:
			status = http.StatusInternalServerError
			resp.Code = string(apperrors.KindInternal)
			resp.Message = "Something went wrong"
			resp.ErrorSource = []apperrors.FieldError{{Path: "general", Message: "Internal Server Error"}}
		case !production:
			resp.Stack = fmt.Sprintf("%+v", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, resp)
		}
		if err != nil {
			log.Error("write error response", zap.Error(err))
		}
	}
}
