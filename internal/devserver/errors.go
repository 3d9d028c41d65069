package devserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"projectdesk/internal/logging"
)

// authError is the GoTrue error body.
type authError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
}

func (e *authError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Code, e.ErrorCode, e.Msg)
}

func newAuthError(status int, code, msg string) *authError {
	return &authError{Code: status, ErrorCode: code, Msg: msg}
}

// restError is the PostgREST error body.
type restError struct {
	status  int
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details"`
	Hint    *string `json:"hint"`
}

func (e *restError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.status, e.Code, e.Message)
}

func newRestError(status int, code, format string, args ...any) *restError {
	return &restError{status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	errInvalidAPIKey = &echo.HTTPError{Code: http.StatusUnauthorized, Message: "Invalid API key"}
	errBadJWT        = newAuthError(http.StatusUnauthorized, "bad_jwt", "invalid JWT: unable to parse or verify signature")
	errRLSViolation  = newRestError(http.StatusForbidden, "42501", `new row violates row-level security policy for table "projects"`)
)

type messageBody struct {
	Message string `json:"message"`
}

// handleError writes err in the shape of the API that produced it.
func handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		ae *authError
		re *restError
		he *echo.HTTPError
	)
	switch {
	case errors.As(err, &ae):
		err = c.JSON(ae.Code, ae)
	case errors.As(err, &re):
		err = c.JSON(re.status, re)
	case errors.As(err, &he):
		err = c.JSON(he.Code, messageBody{Message: fmt.Sprint(he.Message)})
	default:
		logging.FromContext(c.Request().Context()).Error("request failed", zap.Error(err))
		err = c.JSON(http.StatusInternalServerError, messageBody{Message: "internal server error"})
	}
	if err != nil {
		logging.FromContext(c.Request().Context()).Warn("failed to write error response", zap.Error(err))
	}
}
