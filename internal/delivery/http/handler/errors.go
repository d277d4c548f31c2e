package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"signflow/internal/domain/apperror"
	"signflow/internal/domain/entity"
)

var kindStatus = map[apperror.Kind]int{
	apperror.KindValidation:    fiber.StatusBadRequest,
	apperror.KindAccessDenied:  fiber.StatusForbidden,
	apperror.KindNotFound:      fiber.StatusNotFound,
	apperror.KindStateConflict: fiber.StatusConflict,
	apperror.KindIntegrity:     fiber.StatusUnprocessableEntity,
	apperror.KindTransient:     fiber.StatusServiceUnavailable,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperror.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler renders every error returned by a route in the API envelope.
// Transient causes are logged by the layer that produced them and are not echoed.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return c.Status(StatusFor(appErr.Kind)).JSON(
			entity.NewErrorResponse(string(appErr.Kind), appErr.Message),
		)
	}

	code := fiber.StatusInternalServerError
	errCode := "INTERNAL_ERROR"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		errCode = "HTTP_ERROR"
	}

	return c.Status(code).JSON(entity.NewErrorResponse(errCode, err.Error()))
}
