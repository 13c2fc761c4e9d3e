package lmsstub

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error bodies follow the API's conventions: {"detail": msg} for request
// level failures and {"field": [msgs]} for rejected input.

const (
	detailNoCredentials = "Authentication credentials were not provided."
	detailBadToken      = "Given token not valid for any token type"
	detailBadLogin      = "No active account found with the given credentials"
	detailForbidden     = "You do not have permission to perform this action."
	detailNotFound      = "Not found."
)

type detailError struct {
	Detail string `json:"detail"`
}

type fieldErrors map[string][]string

func fieldError(field, msg string) error {
	return &echo.HTTPError{Code: http.StatusBadRequest, Message: fieldErrors{field: {msg}}}
}

func detail(code int, msg string) error {
	return &echo.HTTPError{Code: code, Message: detailError{Detail: msg}}
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		s.log.Error().Err(err).Str("path", c.Path()).Msg("stub handler failed")
		_ = c.JSON(http.StatusInternalServerError, detailError{Detail: "A server error occurred."})
		return
	}
	switch m := he.Message.(type) {
	case detailError, fieldErrors:
		_ = c.JSON(he.Code, m)
	case string:
		_ = c.JSON(he.Code, detailError{Detail: m})
	default:
		_ = c.JSON(he.Code, detailError{Detail: http.StatusText(he.Code)})
	}
}
