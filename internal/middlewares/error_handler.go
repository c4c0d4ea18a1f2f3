package middlewares

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders errors that escaped the handlers as JSON. Only fiber
// errors carry their message to the client.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}
	slog.Error("unhandled error", "path", ctx.Path(), "error", err)
	return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}
