package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/konbase/internal/elevation"
	"github.com/khanghh/konbase/internal/metrics"
	"github.com/khanghh/konbase/internal/middlewares"
)

type ElevationHandler struct {
	gate ElevationGate
}

// PostElevate answers every rejection with the same 400 body.
func (h *ElevationHandler) PostElevate(ctx *fiber.Ctx) error {
	identity := middlewares.GetIdentity(ctx)
	var req elevateRequest
	if err := ctx.BodyParser(&req); err != nil || req.SecurityCode == "" {
		metrics.ElevationsTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return errorJSON(ctx, fiber.StatusBadRequest, elevation.ErrElevationDenied.Error())
	}

	result, err := h.gate.Elevate(ctx.Context(), identity.UserID, req.SecurityCode)
	if errors.Is(err, elevation.ErrElevationDenied) {
		metrics.ElevationsTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return errorJSON(ctx, fiber.StatusBadRequest, elevation.ErrElevationDenied.Error())
	}
	if err != nil {
		metrics.ElevationsTotal.WithLabelValues(metrics.ResultError).Inc()
		return mapError(ctx, "elevate_to_super_admin", identity.UserID, err)
	}
	metrics.ElevationsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return ctx.JSON(elevateResponse{Success: result.Success, Message: result.Message})
}

func NewElevationHandler(gate ElevationGate) *ElevationHandler {
	return &ElevationHandler{gate: gate}
}
