package handlers

import (
	"errors"
	"fmt"

	"partshop/internal/middleware"
	"partshop/internal/repositories"
	"partshop/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var errBadQuery = errors.New("malformed query")

// errorStatus maps service and repository errors to an HTTP status and a
// stable code clients can switch on.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrUnknownTable, fiber.StatusNotFound, "unknown_table"},
	{services.ErrForbidden, fiber.StatusForbidden, "forbidden"},
	{services.ErrValidation, fiber.StatusBadRequest, "validation_failed"},
	{services.ErrInvalidCredentials, fiber.StatusUnauthorized, "invalid_credentials"},
	{services.ErrInvalidToken, fiber.StatusUnauthorized, middleware.CodeInvalidToken},
	{services.ErrNotApproved, fiber.StatusForbidden, "not_approved"},
	{services.ErrCodeInvalid, fiber.StatusBadRequest, "code_invalid"},
	{services.ErrEmailTaken, fiber.StatusConflict, "email_taken"},
	{repositories.ErrUnknownColumn, fiber.StatusBadRequest, "unknown_column"},
	{repositories.ErrUnfiltered, fiber.StatusBadRequest, "filter_required"},
	{repositories.ErrDuplicate, fiber.StatusConflict, "duplicate"},
	{repositories.ErrConstraint, fiber.StatusBadRequest, "constraint_violation"},
	{repositories.ErrNotFound, fiber.StatusNotFound, "not_found"},
	{errBadQuery, fiber.StatusBadRequest, "bad_query"},
}

func writeError(c *fiber.Ctx, log *zap.Logger, err error) error {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return c.Status(e.status).JSON(fiber.Map{
				"message": err.Error(),
				"code":    e.code,
			})
		}
	}
	log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Internal server error",
		"code":    "internal",
	})
}

// badBody reports a request body that could not be parsed.
func badBody(c *fiber.Ctx, log *zap.Logger, err error) error {
	return writeError(c, log, fmt.Errorf("%w: invalid request body: %v", services.ErrValidation, err))
}

func validationFailed(c *fiber.Ctx, err error) error {
	errorMessages := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"code":    "validation_failed",
		"errors":  errorMessages,
	})
}
