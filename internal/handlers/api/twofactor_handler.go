package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/konbase/internal/metrics"
	"github.com/khanghh/konbase/internal/middlewares"
	"github.com/khanghh/konbase/internal/twofactor"
	"github.com/spf13/cast"
)

const (
	flowVerify    = "verify"
	flowChallenge = "challenge"
	flowRecover   = "recover"
)

type TwoFactorHandler struct {
	twoFactorService TwoFactorService
	attemptLimiter   AttemptLimiter
}

func (h *TwoFactorHandler) PostGenerateSecret(ctx *fiber.Ctx) error {
	identity := middlewares.GetIdentity(ctx)
	key, err := h.twoFactorService.BeginSetup(ctx.Context(), twofactor.Subject{
		UserID: identity.UserID,
		Email:  identity.Email,
	})
	if err != nil {
		return mapError(ctx, "generate_secret", identity.UserID, err)
	}
	return ctx.JSON(generateSecretResponse{
		Secret: key.Secret,
		KeyURI: key.ProvisioningURI,
		QRCode: key.QRCode,
	})
}

func (h *TwoFactorHandler) PostGenerateRecoveryKeys(ctx *fiber.Ctx) error {
	var req generateRecoveryKeysRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			slog.Debug("Ignoring malformed recovery key request", "error", err)
		}
	}
	// non-numeric counts fall back to the default batch size
	count, err := cast.ToIntE(req.Count)
	if err != nil {
		count = 0
	}
	keys, err := h.twoFactorService.GenerateRecoveryKeys(count)
	if err != nil {
		return mapError(ctx, "generate_recovery_keys", "", err)
	}
	return ctx.JSON(generateRecoveryKeysResponse{Keys: keys})
}

func (h *TwoFactorHandler) PostSetup(ctx *fiber.Ctx) error {
	identity := middlewares.GetIdentity(ctx)
	var req setupRequest
	if err := ctx.BodyParser(&req); err != nil || req.Secret == "" || len(req.RecoveryKeys) == 0 {
		return errorJSON(ctx, fiber.StatusBadRequest, "secret and recoveryKeys are required")
	}
	if err := h.twoFactorService.Enroll(ctx.Context(), identity.UserID, req.Secret, req.RecoveryKeys); err != nil {
		metrics.TwoFactorSetupsTotal.WithLabelValues(metrics.ResultError).Inc()
		return mapError(ctx, "setup_2fa", identity.UserID, err)
	}
	metrics.TwoFactorSetupsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return ctx.JSON(successResponse{Success: true})
}

func (h *TwoFactorHandler) PostConfirmSetup(ctx *fiber.Ctx) error {
	identity := middlewares.GetIdentity(ctx)
	var req confirmSetupRequest
	if err := ctx.BodyParser(&req); err != nil || req.Secret == "" || req.Token == "" {
		return errorJSON(ctx, fiber.StatusBadRequest, "secret and token are required")
	}
	keys, err := h.twoFactorService.CompleteSetup(ctx.Context(), identity.UserID, req.Secret, req.Token)
	if errors.Is(err, twofactor.ErrTOTPVerifyFailed) {
		metrics.TwoFactorSetupsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"verified": false,
			"error":    err.Error(),
		})
	}
	if err != nil {
		metrics.TwoFactorSetupsTotal.WithLabelValues(metrics.ResultError).Inc()
		return mapError(ctx, "setup_2fa", identity.UserID, err)
	}
	metrics.TwoFactorSetupsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return ctx.JSON(confirmSetupResponse{Success: true, RecoveryKeys: keys})
}

func (h *TwoFactorHandler) PostVerify(ctx *fiber.Ctx) error {
	var req verifyRequest
	if err := ctx.BodyParser(&req); err != nil || req.Secret == "" || req.Token == "" {
		return errorJSON(ctx, fiber.StatusBadRequest, "secret and token are required")
	}
	outcome, err := h.twoFactorService.Verify(req.Secret, req.Token)
	if err != nil {
		return mapError(ctx, "verify_totp", "", err)
	}
	metrics.TwoFactorVerificationsTotal.WithLabelValues(flowVerify, verificationResult(outcome.Verified)).Inc()
	return ctx.JSON(verifyResponse{
		Verified:   outcome.Verified,
		Delta:      outcome.Delta,
		ServerTime: formatServerTime(outcome.ServerTime),
	})
}

func (h *TwoFactorHandler) PostChallenge(ctx *fiber.Ctx) error {
	identity := middlewares.GetIdentity(ctx)
	var req challengeRequest
	if err := ctx.BodyParser(&req); err != nil || req.Token == "" {
		return errorJSON(ctx, fiber.StatusBadRequest, "token is required")
	}
	if err := h.attemptLimiter.Check(ctx.Context(), identity.UserID); err != nil {
		metrics.TwoFactorVerificationsTotal.WithLabelValues(flowChallenge, metrics.ResultLocked).Inc()
		return mapError(ctx, "verify_login", identity.UserID, err)
	}

	verified, err := h.twoFactorService.VerifyLogin(ctx.Context(), identity.UserID, req.Token)
	if err != nil {
		return mapError(ctx, "verify_login", identity.UserID, err)
	}
	metrics.TwoFactorVerificationsTotal.WithLabelValues(flowChallenge, verificationResult(verified)).Inc()
	if !verified {
		if err := h.attemptLimiter.RecordFailure(ctx.Context(), identity.UserID); err != nil {
			return mapError(ctx, "verify_login", identity.UserID, err)
		}
		return ctx.JSON(challengeResponse{Verified: false})
	}
	if err := h.attemptLimiter.Reset(ctx.Context(), identity.UserID); err != nil {
		slog.Warn("Failed to reset attempt counter", "userID", identity.UserID, "error", err)
	}
	return ctx.JSON(challengeResponse{Verified: true})
}

func (h *TwoFactorHandler) PostRecover(ctx *fiber.Ctx) error {
	identity := middlewares.GetIdentity(ctx)
	var req recoverRequest
	if err := ctx.BodyParser(&req); err != nil || req.RecoveryKey == "" {
		return errorJSON(ctx, fiber.StatusBadRequest, "recoveryKey is required")
	}
	if err := h.attemptLimiter.Check(ctx.Context(), identity.UserID); err != nil {
		metrics.TwoFactorVerificationsTotal.WithLabelValues(flowRecover, metrics.ResultLocked).Inc()
		return mapError(ctx, "redeem_recovery_key", identity.UserID, err)
	}

	redeemed, err := h.twoFactorService.RedeemRecoveryKey(ctx.Context(), identity.UserID, req.RecoveryKey)
	if err != nil {
		return mapError(ctx, "redeem_recovery_key", identity.UserID, err)
	}
	metrics.TwoFactorVerificationsTotal.WithLabelValues(flowRecover, verificationResult(redeemed)).Inc()
	if !redeemed {
		if err := h.attemptLimiter.RecordFailure(ctx.Context(), identity.UserID); err != nil {
			return mapError(ctx, "redeem_recovery_key", identity.UserID, err)
		}
		return errorJSON(ctx, fiber.StatusBadRequest, "invalid recovery key")
	}
	if err := h.attemptLimiter.Reset(ctx.Context(), identity.UserID); err != nil {
		slog.Warn("Failed to reset attempt counter", "userID", identity.UserID, "error", err)
	}
	return ctx.JSON(successResponse{Success: true})
}

func (h *TwoFactorHandler) PostDisable(ctx *fiber.Ctx) error {
	identity := middlewares.GetIdentity(ctx)
	if err := h.twoFactorService.Disable(ctx.Context(), identity.UserID); err != nil {
		metrics.TwoFactorDisablesTotal.WithLabelValues(metrics.ResultError).Inc()
		return mapError(ctx, "disable_2fa", identity.UserID, err)
	}
	metrics.TwoFactorDisablesTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return ctx.JSON(successResponse{Success: true})
}

func (h *TwoFactorHandler) GetStatus(ctx *fiber.Ctx) error {
	identity := middlewares.GetIdentity(ctx)
	status, err := h.twoFactorService.Status(ctx.Context(), identity.UserID)
	if err != nil {
		return mapError(ctx, "status_2fa", identity.UserID, err)
	}
	return ctx.JSON(statusResponse{
		Enabled:               status.Enabled,
		RecoveryKeysRemaining: status.RecoveryKeysRemaining,
	})
}

func verificationResult(ok bool) string {
	if ok {
		return metrics.ResultSuccess
	}
	return metrics.ResultFailure
}

func NewTwoFactorHandler(twoFactorService TwoFactorService, attemptLimiter AttemptLimiter) *TwoFactorHandler {
	return &TwoFactorHandler{
		twoFactorService: twoFactorService,
		attemptLimiter:   attemptLimiter,
	}
}
