package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	CodeBadRequest    = "bad_request"
	CodeSnapshotError = "snapshot_error"
	CodeRateLimited   = "rate_limited"
	CodeInternal      = "internal_error"
)

// SuccessResponse writes v as the 200 body. Payloads carry their own ok flag.
func SuccessResponse(c echo.Context, v interface{}) error {
	return c.JSON(http.StatusOK, v)
}

// RawJSONResponse writes pre-encoded JSON, used for cached bodies.
func RawJSONResponse(c echo.Context, b []byte) error {
	return c.JSONBlob(http.StatusOK, b)
}

// ErrorResponse writes {ok:false,error,detail}.
func ErrorResponse(c echo.Context, status int, code string, detail interface{}) error {
	return c.JSON(status, ErrorBody{OK: false, Error: code, Detail: detail})
}

// BadRequestResponse writes bad request error with validation details.
func BadRequestResponse(c echo.Context, detail interface{}) error {
	return ErrorResponse(c, http.StatusBadRequest, CodeBadRequest, detail)
}

// NoContentResponse writes no content response.
func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// AppErrorResponse maps err to its envelope. Errors that are not AppError
// render as 500 with the error message.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		var detail interface{}
		if appErr.Message != "" && appErr.Message != appErr.Code {
			detail = appErr.Message
		}
		if len(appErr.Params) > 0 {
			detail = appErr.Params
		}
		return ErrorResponse(c, appErr.Status, appErr.Code, detail)
	}
	return ErrorResponse(c, http.StatusInternalServerError, err.Error(), nil)
}
