package api

import "time"

// serverTimeFormat matches JavaScript's Date.toISOString.
const serverTimeFormat = "2006-01-02T15:04:05.000Z"

type ErrorResponse struct {
	Error string `json:"error"`
}

type generateSecretResponse struct {
	Secret string `json:"secret"`
	KeyURI string `json:"keyUri"`
	QRCode string `json:"qrCode"`
}

type generateRecoveryKeysRequest struct {
	Count any `json:"count"` // number or numeric string
}

type generateRecoveryKeysResponse struct {
	Keys []string `json:"keys"`
}

type setupRequest struct {
	Secret       string   `json:"secret"`
	RecoveryKeys []string `json:"recoveryKeys"`
}

type confirmSetupRequest struct {
	Secret string `json:"secret"`
	Token  string `json:"token"`
}

type confirmSetupResponse struct {
	Success      bool     `json:"success"`
	RecoveryKeys []string `json:"recoveryKeys"`
}

type verifyRequest struct {
	Secret string `json:"secret"`
	Token  string `json:"token"`
}

type verifyResponse struct {
	Verified   bool   `json:"verified"`
	Delta      *int   `json:"delta"`
	ServerTime string `json:"serverTime"`
}

type challengeRequest struct {
	Token string `json:"token"`
}

type challengeResponse struct {
	Verified bool `json:"verified"`
}

type recoverRequest struct {
	RecoveryKey string `json:"recoveryKey"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type statusResponse struct {
	Enabled               bool  `json:"enabled"`
	RecoveryKeysRemaining int64 `json:"recoveryKeysRemaining"`
}

type elevateRequest struct {
	SecurityCode string `json:"securityCode"`
}

type elevateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func formatServerTime(t time.Time) string {
	return t.UTC().Format(serverTimeFormat)
}
