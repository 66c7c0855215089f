package serverutils

import (
	"errors"

	"gemini-rag-be/internal/constant"
	"gemini-rag-be/internal/pkg/logger"
	"gemini-rag-be/internal/service"
	"gemini-rag-be/pkg/filestore"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps a service error onto an HTTP status.
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	var validationErr *ValidationError

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrDocumentNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrIndexingFailed):
		return fiber.StatusBadGateway
	case errors.Is(err, filestore.ErrRemoteUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// NewErrorHandler is installed as the Fiber ErrorHandler so every returned
// error leaves as the JSON envelope.
func NewErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		code := StatusFor(err)

		details := map[string]interface{}{
			"method": ctx.Method(),
			"path":   ctx.Path(),
			"status": code,
			"error":  err.Error(),
		}
		if code >= fiber.StatusInternalServerError {
			log.Error(constant.LogModuleHTTP, "Request failed", details)
		} else {
			log.Warn(constant.LogModuleHTTP, "Request rejected", details)
		}

		return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
	}
}
