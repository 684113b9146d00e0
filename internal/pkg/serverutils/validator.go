package serverutils

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// ValidateRequest runs struct tag validation and maps failures to a 400.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		field := ve[0]
		return NewAppError(fiber.StatusBadRequest,
			fmt.Sprintf("Field '%s' failed on '%s' validation", field.Field(), field.Tag()))
	}
	return NewAppError(fiber.StatusBadRequest, "Invalid request payload")
}
