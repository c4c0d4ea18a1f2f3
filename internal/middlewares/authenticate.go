package middlewares

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/konbase/internal/auth"
)

const identityContextKey = "identity"

type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller identity for GetIdentity.
func Authenticate(verifier TokenVerifier) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		token, ok := auth.BearerToken(ctx.Get(fiber.HeaderAuthorization))
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		identity, err := verifier.Verify(token)
		if err != nil {
			slog.Debug("Rejected bearer token", "path", ctx.Path(), "error", err)
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		ctx.Locals(identityContextKey, identity)
		return ctx.Next()
	}
}

// GetIdentity returns the identity set by Authenticate, or nil.
func GetIdentity(ctx *fiber.Ctx) *auth.Identity {
	identity, _ := ctx.Locals(identityContextKey).(*auth.Identity)
	return identity
}
