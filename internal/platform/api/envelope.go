package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the body of every API response.
type Envelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// OK writes a 200 success envelope.
func OK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{Status: StatusSuccess, Data: data})
}

// Created writes a 201 success envelope.
func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Envelope{Status: StatusSuccess, Data: data})
}

// Resolve maps any error to the status code and error envelope sent to the client.
func Resolve(err error) (int, Envelope) {
	var ve *ValidationError
	var ae *AuthorizationError
	var he *echo.HTTPError

	switch {
	case errors.As(err, &ve):
		return ve.Status, Envelope{Status: StatusError, Message: ve.Message, Code: ve.Code}
	case errors.As(err, &ae):
		code := CodeUnauthorized
		if ae.Status == http.StatusForbidden {
			code = CodeForbidden
		}
		return ae.Status, Envelope{Status: StatusError, Message: ae.Message, Code: code}
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		code := CodeInvalidParams
		switch he.Code {
		case http.StatusNotFound:
			code = CodeNotFound
		case http.StatusUnauthorized:
			code = CodeUnauthorized
		case http.StatusForbidden:
			code = CodeForbidden
		case http.StatusTooManyRequests:
			code = CodeRateLimited
		}
		if he.Code >= http.StatusInternalServerError {
			code = CodeUnexpected
		}
		return he.Code, Envelope{Status: StatusError, Message: msg, Code: code}
	default:
		return http.StatusInternalServerError, Envelope{
			Status:  StatusError,
			Message: "unexpected error",
			Code:    CodeUnexpected,
		}
	}
}

// ErrorHandler converts errors returned by handlers into error envelopes.
// Server errors are logged with the request id; their detail never reaches the client.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, env := Resolve(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, env)
	}
}
