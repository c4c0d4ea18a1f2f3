package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMasterKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", MasterKeySize)))

func validConfig() Config {
	return Config{
		MasterKey: testMasterKey,
		Database:  DatabaseConfig{Dsn: "postgres://localhost/konbase"},
		Auth:      AuthConfig{JWTSecret: "jwt-secret"},
		Elevation: ElevationConfig{Secret: "a-long-elevation-secret"},
	}
}

func TestSanitizeDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Sanitize())

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultDatabaseDriver, cfg.Database.Driver)
	assert.Equal(t, DefaultIssuer, cfg.TwoFactor.Issuer)
	require.NotNil(t, cfg.TwoFactor.Window)
	assert.Equal(t, 2, *cfg.TwoFactor.Window)
	assert.Equal(t, 8, cfg.TwoFactor.RecoveryKeyCount)
	assert.Equal(t, "system_admin", cfg.Elevation.FromRole)
	assert.Equal(t, "super_admin", cfg.Elevation.ToRole)
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
	assert.Len(t, cfg.MasterKeyBytes(), MasterKeySize)
}

func intPtr(v int) *int {
	return &v
}

func TestSanitizeKeepsStrictWindow(t *testing.T) {
	cfg := validConfig()
	cfg.TwoFactor.Window = intPtr(0)
	require.NoError(t, cfg.Sanitize())
	assert.Equal(t, 0, *cfg.TwoFactor.Window)
}

func TestSanitizeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"missing dsn", func(c *Config) { c.Database.Dsn = "" }, ErrMissingDatabaseDSN},
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, ErrUnsupportedDatabase},
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, ErrMissingJWTSecret},
		{"short master key", func(c *Config) { c.MasterKey = "c2hvcnQ=" }, ErrInvalidMasterKey},
		{"weak elevation secret", func(c *Config) { c.Elevation.Secret = "short" }, ErrWeakElevationSecret},
		{"same roles", func(c *Config) { c.Elevation.FromRole, c.Elevation.ToRole = "admin", "admin" }, ErrSameElevationRoles},
		{"window too wide", func(c *Config) { c.TwoFactor.Window = intPtr(5) }, ErrInvalidTOTPWindow},
		{"negative window", func(c *Config) { c.TwoFactor.Window = intPtr(-1) }, ErrInvalidTOTPWindow},
		{"smtp without host", func(c *Config) { c.Mail.Backend = "smtp" }, ErrMissingMailSMTPAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Sanitize(), tt.want)
		})
	}
}

func TestSanitizeAcceptsHexMasterKey(t *testing.T) {
	cfg := validConfig()
	cfg.MasterKey = strings.Repeat("ab", MasterKeySize)
	require.NoError(t, cfg.Sanitize())
	assert.Equal(t, byte(0xab), cfg.MasterKeyBytes()[0])
}

func TestLoadConfig(t *testing.T) {
	content := `
siteName: KonBase
masterKey: ` + testMasterKey + `
database:
  driver: mysql
  dsn: user:pass@tcp(localhost:3306)/konbase?parseTime=true
auth:
  jwtSecret: jwt-secret
elevation:
  secret: a-long-elevation-secret
twoFactor:
  window: 1
  recoveryKeyCount: 10
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 1, *cfg.TwoFactor.Window)
	assert.Equal(t, 10, cfg.TwoFactor.RecoveryKeyCount)
	assert.Equal(t, "KonBase", cfg.TwoFactor.Issuer)
}

func TestLoadConfigStrictWindow(t *testing.T) {
	content := `
masterKey: ` + testMasterKey + `
database:
  dsn: postgres://localhost/konbase
auth:
  jwtSecret: jwt-secret
elevation:
  secret: a-long-elevation-secret
twoFactor:
  window: 0
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.TwoFactor.Window)
	assert.Equal(t, 0, *cfg.TwoFactor.Window)
}
