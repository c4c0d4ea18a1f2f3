package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/konbase/internal/audit"
	"github.com/khanghh/konbase/internal/auth"
	"github.com/khanghh/konbase/internal/dbtest"
	"github.com/khanghh/konbase/internal/elevation"
	"github.com/khanghh/konbase/internal/middlewares"
	"github.com/khanghh/konbase/internal/store"
	"github.com/khanghh/konbase/internal/twofactor"
	"github.com/khanghh/konbase/internal/users"
	"github.com/khanghh/konbase/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJWTSecret       = "jwt-secret"
	testElevationSecret = "a-long-elevation-secret"
)

type nopNotifier struct{}

func (nopNotifier) NotifyTwoFactorEnabled(context.Context, string) error { return nil }

func (nopNotifier) NotifyTwoFactorDisabled(context.Context, string) error { return nil }

func (nopNotifier) NotifyRoleElevated(context.Context, string, string) error { return nil }

type testServer struct {
	app     *fiber.App
	member  *model.Profile
	admin   *model.Profile
	auditor *audit.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.Open(t)

	cipher, err := twofactor.NewSecretCipher(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)

	profileRepo := users.NewProfileRepository(db)
	auditor := audit.NewRecorder(audit.NewAuditLogRepository(db))
	credentials := twofactor.NewCredentialStore(db,
		users.NewTOTPCredentialRepository(db),
		users.NewRecoveryKeyRepository(db),
	)
	twoFactorService := twofactor.NewTwoFactorService(db, profileRepo, credentials, auditor, cipher,
		nopNotifier{}, twofactor.Options{Issuer: "KonBase", Window: 2, RecoveryKeyCount: 2})
	gate, err := elevation.NewGate(db, profileRepo, auditor, nopNotifier{}, elevation.Options{
		Secret:   testElevationSecret,
		FromRole: "system_admin",
		ToRole:   "super_admin",
	})
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: middlewares.ErrorHandler})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	SetupRoutes(app.Group("/api"),
		middlewares.Authenticate(auth.NewTokenVerifier(testJWTSecret, "")),
		NewTwoFactorHandler(twoFactorService, twofactor.NewAttemptLimiter(store.NewMemoryStorage())),
		NewElevationHandler(gate),
	)

	return &testServer{
		app:     app,
		member:  dbtest.CreateProfile(t, db, "member@example.com", "member"),
		admin:   dbtest.CreateProfile(t, db, "admin@example.com", "system_admin"),
		auditor: auditor,
	}
}

func tokenFor(t *testing.T, profile *model.Profile) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Email: profile.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method string, path string, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, 10_000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	result := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &result), string(raw))
	}
	return resp.StatusCode, result
}

func TestUnauthenticatedRequests(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/2fa/secret", "/api/2fa/setup", "/api/2fa/disable", "/api/admin/elevate"} {
		status, body := s.do(t, fiber.MethodPost, path, "", map[string]any{})
		assert.Equal(t, fiber.StatusUnauthorized, status, path)
		assert.Equal(t, "unauthorized", body["error"], path)
	}
	status, _ := s.do(t, fiber.MethodPost, "/api/2fa/secret", "not-a-jwt", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(fiber.MethodOptions, "/api/2fa/verify", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://app.example.com")
	req.Header.Set(fiber.HeaderAccessControlRequestMethod, fiber.MethodPost)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func TestGenerateRecoveryKeys(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		body any
		want int
	}{
		{nil, 2},
		{map[string]any{"count": 5}, 5},
		{map[string]any{"count": "3"}, 3},
		{map[string]any{"count": 40}, 16},
		{map[string]any{"count": "lots"}, 2},
	}
	for _, tt := range tests {
		status, body := s.do(t, fiber.MethodPost, "/api/2fa/recovery-keys", "", tt.body)
		require.Equal(t, fiber.StatusOK, status)
		assert.Len(t, body["keys"], tt.want, "%v", tt.body)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	s := newTestServer(t)
	secret := "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"

	status, body := s.do(t, fiber.MethodPost, "/api/2fa/verify", "", map[string]any{"secret": secret})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])

	code, err := twofactor.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	status, body = s.do(t, fiber.MethodPost, "/api/2fa/verify", "", map[string]any{"secret": secret, "token": code})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["verified"])
	assert.NotNil(t, body["delta"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, body["serverTime"])

	status, body = s.do(t, fiber.MethodPost, "/api/2fa/verify", "", map[string]any{"secret": secret, "token": "abcdef"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["verified"])
	assert.Contains(t, body, "delta")
	assert.Nil(t, body["delta"])
}

func TestSetupFlow(t *testing.T) {
	s := newTestServer(t)
	token := tokenFor(t, s.member)

	status, body := s.do(t, fiber.MethodPost, "/api/2fa/secret", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	secret := body["secret"].(string)
	assert.Contains(t, body["keyUri"], "otpauth://totp/KonBase:member%40example.com?secret="+secret)
	assert.NotEmpty(t, body["qrCode"])

	status, _ = s.do(t, fiber.MethodPost, "/api/2fa/setup/confirm", token, map[string]any{"secret": secret})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = s.do(t, fiber.MethodPost, "/api/2fa/setup/confirm", token, map[string]any{"secret": secret, "token": "000000"})
	if status == fiber.StatusOK {
		t.Skip("random code matched")
	}
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, false, body["verified"])

	code, err := twofactor.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	status, body = s.do(t, fiber.MethodPost, "/api/2fa/setup/confirm", token, map[string]any{"secret": secret, "token": code})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	keys := body["recoveryKeys"].([]any)
	require.Len(t, keys, 2)

	status, body = s.do(t, fiber.MethodGet, "/api/2fa/status", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["enabled"])
	assert.Equal(t, float64(2), body["recoveryKeysRemaining"])

	status, body = s.do(t, fiber.MethodPost, "/api/2fa/challenge", token, map[string]any{"token": code})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["verified"])

	status, body = s.do(t, fiber.MethodPost, "/api/2fa/recover", token, map[string]any{"recoveryKey": keys[0]})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	status, _ = s.do(t, fiber.MethodPost, "/api/2fa/recover", token, map[string]any{"recoveryKey": keys[0]})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = s.do(t, fiber.MethodPost, "/api/2fa/disable", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	status, _ = s.do(t, fiber.MethodPost, "/api/2fa/disable", token, nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestSetupWithClientKeys(t *testing.T) {
	s := newTestServer(t)
	token := tokenFor(t, s.member)

	status, _ := s.do(t, fiber.MethodPost, "/api/2fa/setup", token, map[string]any{"secret": "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = s.do(t, fiber.MethodPost, "/api/2fa/setup", token, map[string]any{"recoveryKeys": []string{"ABCD-EFGH-JKLM"}})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := s.do(t, fiber.MethodPost, "/api/2fa/setup", token, map[string]any{
		"secret":       "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP",
		"recoveryKeys": []string{"ABCD-EFGH-JKLM", "abcd efgh jklm"},
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "recovery keys must be unique", body["error"])

	status, body = s.do(t, fiber.MethodPost, "/api/2fa/setup", token, map[string]any{
		"secret":       "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP",
		"recoveryKeys": []string{"ABCD-EFGH-JKLM", "NPQR-STUV-WXYZ"},
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
}

func TestUnknownProfile(t *testing.T) {
	s := newTestServer(t)
	token := tokenFor(t, &model.Profile{ID: "deleted-user", Email: "gone@example.com"})

	status, body := s.do(t, fiber.MethodPost, "/api/2fa/disable", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body["error"])

	status, _ = s.do(t, fiber.MethodGet, "/api/2fa/status", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestChallengeLockout(t *testing.T) {
	s := newTestServer(t)
	token := tokenFor(t, s.member)

	status, _ := s.do(t, fiber.MethodPost, "/api/2fa/setup", token, map[string]any{
		"secret":       "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP",
		"recoveryKeys": []string{"ABCD-EFGH-JKLM"},
	})
	require.Equal(t, fiber.StatusOK, status)

	locked := false
	for i := 0; i < 20 && !locked; i++ {
		status, _ = s.do(t, fiber.MethodPost, "/api/2fa/challenge", token, map[string]any{"token": "abcdef"})
		locked = status == fiber.StatusTooManyRequests
	}
	require.True(t, locked)

	code, err := twofactor.GenerateCode("JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP", time.Now())
	require.NoError(t, err)
	status, _ = s.do(t, fiber.MethodPost, "/api/2fa/challenge", token, map[string]any{"token": code})
	assert.Equal(t, fiber.StatusTooManyRequests, status, "locked users cannot verify even with a valid code")
}

func TestElevateEndpoint(t *testing.T) {
	s := newTestServer(t)

	_, wrongSecret := s.do(t, fiber.MethodPost, "/api/admin/elevate", tokenFor(t, s.admin), map[string]any{"securityCode": "nope"})
	status, wrongRole := s.do(t, fiber.MethodPost, "/api/admin/elevate", tokenFor(t, s.member), map[string]any{"securityCode": testElevationSecret})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, wrongSecret, wrongRole)
	status, missing := s.do(t, fiber.MethodPost, "/api/admin/elevate", tokenFor(t, s.admin), map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, wrongSecret, missing)

	status, body := s.do(t, fiber.MethodPost, "/api/admin/elevate", tokenFor(t, s.admin), map[string]any{"securityCode": testElevationSecret})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["message"])

	entries, err := s.auditor.Entries(context.Background(), s.admin.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
