package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/khanghh/konbase/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr       = ":3000"
	DefaultDatabaseDriver   = "postgres"
	DefaultIssuer           = "KonBase"
	DefaultHealthCheckAddr  = params.HealthCheckServerAddr
	MasterKeySize           = 32
	MinElevationSecretBytes = 16
)

var (
	ErrMissingDatabaseDSN     = errors.New("database.dsn is required")
	ErrUnsupportedDatabase    = errors.New("unsupported database driver")
	ErrMissingJWTSecret       = errors.New("auth.jwtSecret is required")
	ErrInvalidMasterKey       = errors.New("masterKey must be 32 bytes encoded as base64 or hex")
	ErrWeakElevationSecret    = errors.New("elevation.secret must be at least 16 characters")
	ErrInvalidTOTPWindow      = errors.New("twoFactor.window out of range")
	ErrSameElevationRoles     = errors.New("elevation.fromRole and elevation.toRole must differ")
	ErrMissingMailSMTPAddress = errors.New("mail.smtp.host is required for the smtp backend")
)

type DatabaseConfig struct {
	Driver          string   `mapstructure:"driver"`
	Dsn             string   `mapstructure:"dsn"`
	Replicas        []string `mapstructure:"replicas"`
	MaxIdleConns    int      `mapstructure:"maxIdleConns"`
	MaxOpenConns    int      `mapstructure:"maxOpenConns"`
	ConnMaxLifetime int      `mapstructure:"connMaxLifetime"` // seconds
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
	Audience  string `mapstructure:"audience"`
}

type ElevationConfig struct {
	Secret   string `mapstructure:"secret"`
	FromRole string `mapstructure:"fromRole"`
	ToRole   string `mapstructure:"toRole"`
}

type TwoFactorConfig struct {
	Issuer           string `mapstructure:"issuer"`
	Window           *int   `mapstructure:"window"` // nil means default, 0 is strict
	RecoveryKeyCount int    `mapstructure:"recoveryKeyCount"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	CAFile   string `mapstructure:"caFile"`
}

type MailConfig struct {
	Backend string     `mapstructure:"backend"`
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type Config struct {
	Debug           bool            `mapstructure:"debug"`
	SiteName        string          `mapstructure:"siteName"`
	MasterKey       string          `mapstructure:"masterKey"`
	ListenAddr      string          `mapstructure:"listenAddr"`
	HealthCheckAddr string          `mapstructure:"healthCheckAddr"`
	TemplateDir     string          `mapstructure:"templateDir"`
	AllowOrigins    []string        `mapstructure:"allowOrigins"`
	Database        DatabaseConfig  `mapstructure:"database"`
	Auth            AuthConfig      `mapstructure:"auth"`
	Elevation       ElevationConfig `mapstructure:"elevation"`
	TwoFactor       TwoFactorConfig `mapstructure:"twoFactor"`
	Redis           RedisConfig     `mapstructure:"redis"`
	Mail            MailConfig      `mapstructure:"mail"`

	masterKey []byte
}

// MasterKeyBytes returns the decoded master key. Only valid after Sanitize.
func (c *Config) MasterKeyBytes() []byte {
	return c.masterKey
}

func decodeMasterKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if key, err := base64.StdEncoding.DecodeString(encoded); err == nil && len(key) == MasterKeySize {
		return key, nil
	}
	if key, err := hex.DecodeString(encoded); err == nil && len(key) == MasterKeySize {
		return key, nil
	}
	return nil, ErrInvalidMasterKey
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.HealthCheckAddr == "" {
		c.HealthCheckAddr = DefaultHealthCheckAddr
	}
	if c.SiteName == "" {
		c.SiteName = DefaultIssuer
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"*"}
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDatabase, c.Database.Driver)
	}
	if c.Database.Dsn == "" {
		return ErrMissingDatabaseDSN
	}

	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}

	key, err := decodeMasterKey(c.MasterKey)
	if err != nil {
		return err
	}
	c.masterKey = key

	if len(c.Elevation.Secret) < MinElevationSecretBytes {
		return ErrWeakElevationSecret
	}
	if c.Elevation.FromRole == "" {
		c.Elevation.FromRole = params.DefaultElevationFromRole
	}
	if c.Elevation.ToRole == "" {
		c.Elevation.ToRole = params.DefaultElevationToRole
	}
	if c.Elevation.FromRole == c.Elevation.ToRole {
		return ErrSameElevationRoles
	}

	if c.TwoFactor.Issuer == "" {
		c.TwoFactor.Issuer = c.SiteName
	}
	if c.TwoFactor.Window == nil {
		window := params.TOTPDefaultWindow
		c.TwoFactor.Window = &window
	}
	if w := *c.TwoFactor.Window; w < 0 || w > params.TOTPMaxWindow {
		return fmt.Errorf("%w: %d", ErrInvalidTOTPWindow, w)
	}
	if c.TwoFactor.RecoveryKeyCount <= 0 || c.TwoFactor.RecoveryKeyCount > params.RecoveryKeyMaxCount {
		c.TwoFactor.RecoveryKeyCount = params.RecoveryKeyDefaultCount
	}

	if c.Mail.Backend == "smtp" && c.Mail.SMTP.Host == "" {
		return ErrMissingMailSMTPAddress
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	// .env is optional, values already set in the environment win
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(filename)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
