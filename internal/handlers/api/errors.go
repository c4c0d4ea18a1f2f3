package api

import (
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/konbase/internal/twofactor"
	"github.com/khanghh/konbase/internal/users"
)

const (
	msgInternalError = "internal server error"
	msgUnauthorized  = "unauthorized"
)

func errorJSON(ctx *fiber.Ctx, status int, message string) error {
	return ctx.Status(status).JSON(ErrorResponse{Error: message})
}

// mapError turns service errors into HTTP responses. Unknown errors are
// logged with their cause and answered with a generic message.
func mapError(ctx *fiber.Ctx, op string, userID string, err error) error {
	var locked *twofactor.LockedError
	switch {
	case errors.As(err, &locked):
		retryAfter := math.Ceil(time.Until(locked.Until).Seconds())
		ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(max(int(retryAfter), 1)))
		return errorJSON(ctx, fiber.StatusTooManyRequests, twofactor.ErrTooManyFailedAttempts.Error())
	case errors.Is(err, twofactor.ErrTooManyFailedAttempts):
		return errorJSON(ctx, fiber.StatusTooManyRequests, err.Error())
	case errors.Is(err, twofactor.ErrMissingSecret),
		errors.Is(err, twofactor.ErrMissingCode),
		errors.Is(err, twofactor.ErrMissingRecoveryKeys),
		errors.Is(err, twofactor.ErrMissingRecoveryKey),
		errors.Is(err, twofactor.ErrInvalidSecret),
		errors.Is(err, twofactor.ErrInvalidRecoveryKey),
		errors.Is(err, twofactor.ErrTooManyRecoveryKeys),
		errors.Is(err, twofactor.ErrDuplicateRecoveryKey),
		errors.Is(err, twofactor.ErrTOTPVerifyFailed):
		return errorJSON(ctx, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, twofactor.ErrTOTPNotEnrolled):
		return errorJSON(ctx, fiber.StatusBadRequest, "two-factor authentication is not enabled")
	case errors.Is(err, users.ErrProfileNotFound):
		// a valid token for an account this service does not know
		return errorJSON(ctx, fiber.StatusUnauthorized, msgUnauthorized)
	default:
		slog.Error("Operation failed", "op", op, "userID", userID, "error", err)
		return errorJSON(ctx, fiber.StatusInternalServerError, msgInternalError)
	}
}
