package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("access forbidden")
	ErrNotFound           = errors.New("resource not found")
	ErrLoginRequired      = errors.New("login required")
	ErrInvalidView        = errors.New("invalid modal view")
	ErrModalClosed        = errors.New("modal is closed")
	ErrRequestFailed      = errors.New("request failed")
)

// ValidationError reports a rejected form field, either from local
// validation or from a 400 response of the API. Field may be empty.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Detail
	}
	return e.Field + ": " + e.Detail
}

// RequestError is a network or server fault. Status is 0 when no response
// was received, in which case Cause holds the transport error.
type RequestError struct {
	Status  int
	Message string
	Cause   error
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request failed: %s", e.Message)
	}
	return fmt.Sprintf("request failed (%d %s): %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Is lets errors.Is(err, ErrRequestFailed) match any RequestError.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

func (e *RequestError) Unwrap() error { return e.Cause }

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// ErrNoCredential is returned by token stores when nothing is persisted
// under the requested key.
var ErrNoCredential = errors.New("no persisted credential")
