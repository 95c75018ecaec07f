package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/fitstable/internal/scan"
	"github.com/samcharles93/fitstable/internal/source"
	"github.com/samcharles93/fitstable/pkg/fits"
	"github.com/samcharles93/fitstable/pkg/fits/bintable"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

type errNotFound struct {
	msg string
}

func (e errNotFound) Error() string { return e.msg }

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	HDU     *int   `json:"hdu,omitempty"`
	Row     *int64 `json:"row,omitempty"`
	Column  string `json:"column,omitempty"`
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{Message: msg, Type: errType},
	})
}

// writeFailure maps decoder and data source errors onto HTTP statuses.
func writeFailure(c *echo.Context, err error) error {
	var nf errNotFound
	var re *bintable.RowError
	body := ResponseError{Message: err.Error()}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		status, body.Type = http.StatusBadRequest, "invalid_request_error"
	case errors.As(err, &nf), errors.Is(err, source.ErrOutOfRange):
		status, body.Type = http.StatusNotFound, "not_found_error"
	case errors.As(err, &re):
		status, body.Type = http.StatusUnprocessableEntity, "decode_error"
		body.HDU, body.Row, body.Column = &re.HDU, &re.Row, re.Column
	case errors.Is(err, fits.ErrMalformedHeader), errors.Is(err, fits.ErrUnsupportedType):
		status, body.Type = http.StatusUnprocessableEntity, "format_error"
	case errors.Is(err, scan.ErrScanCancelled):
		status, body.Type = http.StatusServiceUnavailable, "cancelled"
	default:
		body.Type = "server_error"
	}
	return c.JSON(status, map[string]any{"error": body})
}
