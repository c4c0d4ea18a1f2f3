package params

import "time"

const (
	ServerBodyLimit          = 65536 // 64 KiB
	ServerIdleTimeout        = 30 * time.Second
	ServerReadTimeout        = 10 * time.Second
	ServerWriteTimeout       = 10 * time.Second
	AttemptStateKeyPrefix    = "2fa:attempts:"
	TOTPPeriod               = 30               // seconds per TOTP time step
	TOTPDigits               = 6                // digits per TOTP code
	TOTPSecretSize           = 20               // random bytes per TOTP secret, 32 base32 chars
	TOTPDefaultWindow        = 2                // steps checked on each side of now
	TOTPMaxWindow            = 3                // larger windows widen the acceptance period too much
	RecoveryKeyDefaultCount  = 8                // keys per batch when no valid count is given
	RecoveryKeyMaxCount      = 16               // upper bound for keys per batch
	RecoveryKeyBcryptCost    = 10               // bcrypt cost for stored recovery keys
	TwoFactorMaxFailCount    = 10               // failed verifications per user before lockout
	TwoFactorLockoutDuration = 15 * time.Minute // lockout after too many failures; also the counter ttl
	APIRateLimitMax          = 60               // requests per client per APIRateLimitWindow
	APIRateLimitWindow       = 1 * time.Minute
	QRCodeSize               = 256 // provisioning QR code size in pixels
	DefaultElevationFromRole = "system_admin"
	DefaultElevationToRole   = "super_admin"
	HealthCheckServerAddr    = ":3001" // health check server address
	MetricsNamespace         = "konbase"
	SnowflakeNodeID          = 1
	NotificationQueueSize    = 128 // pending notification mails before new ones are dropped
)
