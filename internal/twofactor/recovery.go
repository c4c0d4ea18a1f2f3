package twofactor

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"github.com/khanghh/konbase/params"
	"golang.org/x/crypto/bcrypt"
)

const (
	// recoveryKeyAlphabet leaves out 0, O, 1 and I.
	recoveryKeyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	recoveryKeyGroups   = 3
	recoveryKeyGroupLen = 4
	recoveryKeyLength   = recoveryKeyGroups * recoveryKeyGroupLen
)

// ClampRecoveryKeyCount bounds a requested batch size. Zero means "not
// given" and yields the default; anything else is clamped to [1, max].
func ClampRecoveryKeyCount(count int, max int) int {
	if max <= 0 || max > params.RecoveryKeyMaxCount {
		max = params.RecoveryKeyMaxCount
	}
	if count == 0 {
		count = params.RecoveryKeyDefaultCount
	}
	if count < 1 {
		return 1
	}
	if count > max {
		return max
	}
	return count
}

func generateRecoveryKey() (string, error) {
	var b strings.Builder
	b.Grow(recoveryKeyLength + recoveryKeyGroups - 1)
	alphabetLen := big.NewInt(int64(len(recoveryKeyAlphabet)))
	for i := 0; i < recoveryKeyLength; i++ {
		if i > 0 && i%recoveryKeyGroupLen == 0 {
			b.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		b.WriteByte(recoveryKeyAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// GenerateRecoveryKeys returns a batch of XXXX-XXXX-XXXX keys. The plaintext
// is shown to the user once; only HashRecoveryKey output is stored.
func GenerateRecoveryKeys(count int, max int) ([]string, error) {
	count = ClampRecoveryKeyCount(count, max)
	keys := make([]string, 0, count)
	for len(keys) < count {
		key, err := generateRecoveryKey()
		if err != nil {
			return nil, errors.Join(ErrRecoveryKeyGeneration, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// NormalizeRecoveryKey canonicalizes user input: case, spaces and hyphen
// placement do not matter. It reports false when the input cannot be a key.
func NormalizeRecoveryKey(key string) (string, bool) {
	var raw strings.Builder
	for _, r := range strings.ToUpper(key) {
		switch {
		case r == '-' || r == ' ' || r == '\t':
			continue
		case r < 128 && strings.IndexByte(recoveryKeyAlphabet, byte(r)) >= 0:
			raw.WriteRune(r)
		default:
			return "", false
		}
	}
	s := raw.String()
	if len(s) != recoveryKeyLength {
		return "", false
	}
	return s[0:4] + "-" + s[4:8] + "-" + s[8:12], true
}

func HashRecoveryKey(key string) (string, error) {
	normalized, ok := NormalizeRecoveryKey(key)
	if !ok {
		return "", ErrInvalidRecoveryKey
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(normalized), params.RecoveryKeyBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CompareRecoveryKey(hash string, key string) bool {
	normalized, ok := NormalizeRecoveryKey(key)
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(normalized)) == nil
}
