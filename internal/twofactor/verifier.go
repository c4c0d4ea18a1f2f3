package twofactor

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/khanghh/konbase/params"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var codeOpts = totp.ValidateOpts{
	Period:    params.TOTPPeriod,
	Digits:    otp.Digits(params.TOTPDigits),
	Algorithm: otp.AlgorithmSHA1,
}

// VerifyResult is the outcome of a TOTP check. Delta is the matching time
// step offset relative to now, nil when no step matched.
type VerifyResult struct {
	Verified bool
	Delta    *int
}

// GenerateCode returns the TOTP code of secret for the time step containing t.
func GenerateCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, codeOpts)
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func isNumericCode(code string) bool {
	if len(code) != params.TOTPDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Verify checks code against secret at the current time.
func Verify(secret string, code string, window int) (VerifyResult, error) {
	return VerifyAt(secret, code, window, time.Now())
}

// VerifyAt checks code against the time steps from -window to +window around
// t, oldest first, and reports the first matching offset. Malformed secrets
// or codes are not errors; they simply do not verify.
func VerifyAt(secret string, code string, window int, t time.Time) (VerifyResult, error) {
	secret = stripSpaces(secret)
	code = stripSpaces(code)
	if secret == "" {
		return VerifyResult{}, ErrMissingSecret
	}
	if code == "" {
		return VerifyResult{}, ErrMissingCode
	}
	if window < 0 {
		window = 0
	}
	if window > params.TOTPMaxWindow {
		window = params.TOTPMaxWindow
	}
	if !isNumericCode(code) {
		return VerifyResult{}, nil
	}

	step := time.Duration(params.TOTPPeriod) * time.Second
	for offset := -window; offset <= window; offset++ {
		expected, err := GenerateCode(secret, t.Add(time.Duration(offset)*step))
		if err != nil {
			return VerifyResult{}, nil
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			delta := offset
			return VerifyResult{Verified: true, Delta: &delta}, nil
		}
	}
	return VerifyResult{}, nil
}
