package auth

import (
	"chat-relay/errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterRequest struct {
	DisplayName string `validate:"required,min=2,max=32"`
}

// ValidateRegister checks the display name chosen by a new user once trimmed.
func ValidateRegister(req RegisterRequest) (RegisterRequest, error) {
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return req, nil
}
