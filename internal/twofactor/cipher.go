package twofactor

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// SecretCipher seals TOTP secrets at rest. The owning user id is bound as
// additional data, so a sealed secret copied to another user fails to open.
type SecretCipher struct {
	aead cipher.AEAD
}

func (c *SecretCipher) Seal(userID string, secret string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(secret)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Join(ErrSecretSealing, err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(secret), []byte(userID))
	return base64.RawStdEncoding.EncodeToString(sealed), nil
}

func (c *SecretCipher) Open(userID string, sealed string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.Join(ErrSecretOpening, err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", ErrSecretOpening
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, []byte(userID))
	if err != nil {
		return "", errors.Join(ErrSecretOpening, err)
	}
	return string(plain), nil
}

func NewSecretCipher(key []byte) (*SecretCipher, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &SecretCipher{aead: aead}, nil
}
