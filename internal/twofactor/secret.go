package twofactor

import (
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/khanghh/konbase/params"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

// SetupKey is what a client needs to register an authenticator app.
type SetupKey struct {
	Secret          string
	ProvisioningURI string
	QRCode          string // PNG data URI of ProvisioningURI
}

// GenerateSecret draws a fresh 160-bit TOTP secret, base32 encoded without
// padding, and the otpauth URI for it.
func GenerateSecret(issuer string, account string) (*SetupKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      params.TOTPPeriod,
		SecretSize:  params.TOTPSecretSize,
		Digits:      otp.Digits(params.TOTPDigits),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, errors.Join(ErrSecretGeneration, err)
	}
	secret := key.Secret()
	return &SetupKey{
		Secret:          secret,
		ProvisioningURI: ProvisioningURI(issuer, account, secret),
	}, nil
}

// escapeComponent percent-encodes s the way browsers encode URI components,
// spaces included.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func ProvisioningURI(issuer string, account string, secret string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		escapeComponent(issuer),
		escapeComponent(account),
		secret,
		escapeComponent(issuer),
	)
}

// ProvisioningQRCode renders uri as a PNG data URI for display in an <img>.
func ProvisioningQRCode(uri string) (string, error) {
	png, err := qrcode.Encode(uri, qrcode.Medium, params.QRCodeSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// NormalizeSecret upper-cases a user supplied secret and strips spaces and
// padding. It reports false when the result is not decodable base32 of at
// least 80 bits.
func NormalizeSecret(secret string) (string, bool) {
	secret = strings.ToUpper(strings.Join(strings.Fields(secret), ""))
	secret = strings.TrimRight(secret, "=")
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil || len(raw) < 10 {
		return "", false
	}
	return secret, true
}
