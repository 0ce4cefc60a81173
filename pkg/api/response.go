package api

import (
	"net/http"
	"reflect"

	"github.com/labstack/echo/v4"
)

// Status messages carried in every response envelope.
const (
	MessageSuccess      = "Success"
	MessageBadRequest   = "Bad request"
	MessageUnauthorized = "Unauthorized"
	MessageForbidden    = "Forbidden"
	MessageNotFound     = "Not found"
	MessageServerError  = "Server error"
)

// Envelope is the body shape of every JSON response.
type Envelope struct {
	StatusCode int     `json:"statusCode"`
	Message    string  `json:"message"`
	Source     *string `json:"source"`
	Count      int     `json:"count"`
	Data       any     `json:"data"`
}

func messageFor(status int) string {
	switch status {
	case http.StatusOK:
		return MessageSuccess
	case http.StatusBadRequest:
		return MessageBadRequest
	case http.StatusUnauthorized:
		return MessageUnauthorized
	case http.StatusForbidden:
		return MessageForbidden
	case http.StatusNotFound:
		return MessageNotFound
	case http.StatusInternalServerError:
		return MessageServerError
	default:
		return http.StatusText(status)
	}
}

// newEnvelope counts list data by length, nil as an empty list and anything
// else as one item.
func newEnvelope(status int, data any) Envelope {
	env := Envelope{StatusCode: status, Message: messageFor(status), Data: data}

	if data == nil {
		env.Data = []any{}
		return env
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		env.Count = v.Len()
		if v.Kind() == reflect.Slice && v.IsNil() {
			env.Data = []any{}
		}
	case reflect.Pointer:
		if v.IsNil() {
			env.Data = []any{}
		} else {
			env.Count = 1
		}
	default:
		env.Count = 1
	}
	return env
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, newEnvelope(status, data))
}

func respondError(c echo.Context, status int, err error) error {
	return respond(c, status, errorBody{Error: err.Error()})
}

type errorBody struct {
	Error string `json:"error"`
}

// errorHandler renders errors returned by handlers and middleware in the
// envelope shape.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	}

	if err := respond(c, status, errorBody{Error: msg}); err != nil {
		s.logger.Error("failed to write error response", "error", err)
	}
}
