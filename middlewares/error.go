package middlewares

import (
	"errors"
	"log"

	"rfitrack-backend/workflow"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler centralizes error responses and keeps messages sanitized.
// Workflow errors are expected business outcomes and map to stable codes;
// anything unknown is logged with context and leaves as a generic 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// 1) Workflow taxonomy (business outcomes, user-presentable)
	if code, ok := workflowStatus(err); ok {
		return c.Status(code).JSON(fiber.Map{"success": false, "message": err.Error()})
	}

	// 2) Fiber errors (use their status code + message)
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	// 3) Validation errors (422 + per-field info)
	if ve, ok := err.(validator.ValidationErrors); ok {
		out := make(map[string]string, len(ve))
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  out,
		})
	}

	// 4) Unknown errors (500)
	log.Printf("internal error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "internal server error",
	})
}

func workflowStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return fiber.StatusNotFound, true
	case errors.Is(err, workflow.ErrExpired):
		return fiber.StatusGone, true
	case errors.Is(err, workflow.ErrAlreadyResponded), errors.Is(err, workflow.ErrConflict):
		return fiber.StatusConflict, true
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, workflow.ErrInvalidState):
		return fiber.StatusUnprocessableEntity, true
	}
	return 0, false
}
