package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/validation"
)

// echoValidator wraps go-playground/validator so Echo can call c.Validate(req).
type echoValidator struct {
	v *validator.Validate
}

// NewValidator returns an echoValidator ready to be assigned to echo.Echo.Validator.
// It shares the instance the services validate forms with.
func NewValidator() *echoValidator {
	return &echoValidator{v: validation.Validator()}
}

// Validate satisfies the echo.Validator interface. All failures are joined
// into one ValidationError, attributed to the first failing field.
func (ev *echoValidator) Validate(i any) error {
	err := ev.v.Struct(i)
	if err == nil {
		return nil
	}
	var field string
	if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
		field = ve[0].Field()
	}
	return &domain.ValidationError{
		Field:  field,
		Detail: strings.Join(validation.Messages(err), "; "),
	}
}
