package middlewares

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/konbase/internal/metrics"
)

// RequestMetrics counts requests by route pattern, not raw path.
func RequestMetrics() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()

		status := ctx.Response().StatusCode()
		if fiberErr, ok := err.(*fiber.Error); ok {
			status = fiberErr.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		path := ctx.Route().Path
		metrics.HTTPRequestsTotal.WithLabelValues(ctx.Method(), path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDurationSeconds.WithLabelValues(ctx.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}
