package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/owasp-nest/nest-api/internal/middleware"
	"github.com/owasp-nest/nest-api/internal/service"
)

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		Login: middleware.CurrentLogin(c),
		Token: middleware.CurrentAccessToken(c),
	}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := middleware.RequestLogger(c, base)
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// validationDetails renders validator errors keyed by the offending field.
func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = "failed on " + fieldErr.Tag()
	}
	return details
}
