package api

import "github.com/gofiber/fiber/v2"

// SetupRoutes mounts the 2FA and elevation endpoints. authenticate guards
// every route that acts on the caller's account.
func SetupRoutes(router fiber.Router, authenticate fiber.Handler, twoFactorHandler *TwoFactorHandler, elevationHandler *ElevationHandler) {
	twoFA := router.Group("/2fa")
	twoFA.Post("/recovery-keys", twoFactorHandler.PostGenerateRecoveryKeys)
	twoFA.Post("/verify", twoFactorHandler.PostVerify)
	twoFA.Post("/secret", authenticate, twoFactorHandler.PostGenerateSecret)
	twoFA.Post("/setup", authenticate, twoFactorHandler.PostSetup)
	twoFA.Post("/setup/confirm", authenticate, twoFactorHandler.PostConfirmSetup)
	twoFA.Post("/challenge", authenticate, twoFactorHandler.PostChallenge)
	twoFA.Post("/recover", authenticate, twoFactorHandler.PostRecover)
	twoFA.Post("/disable", authenticate, twoFactorHandler.PostDisable)
	twoFA.Get("/status", authenticate, twoFactorHandler.GetStatus)

	router.Post("/admin/elevate", authenticate, elevationHandler.PostElevate)
}
