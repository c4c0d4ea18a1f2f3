package twofactor

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	key, err := GenerateSecret("Kon Base", "alice+2fa@example.com")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[A-Z2-7]{32}$`), key.Secret)
	assert.Equal(t,
		"otpauth://totp/Kon%20Base:alice%2B2fa%40example.com?secret="+key.Secret+"&issuer=Kon%20Base",
		key.ProvisioningURI)

	other, err := GenerateSecret("Kon Base", "alice+2fa@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, key.Secret, other.Secret)
}

func TestProvisioningQRCode(t *testing.T) {
	uri := ProvisioningURI("KonBase", "alice@example.com", testSecret)
	qr, err := ProvisioningQRCode(uri)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(qr, "data:image/png;base64,"))
}

func TestNormalizeSecret(t *testing.T) {
	got, ok := NormalizeSecret(" jbsw y3dp ehpk 3pxp jbsw y3dp ehpk 3pxp ")
	require.True(t, ok)
	assert.Equal(t, testSecret, got)

	_, ok = NormalizeSecret("JBSWY3DP")
	assert.False(t, ok, "too short")
	_, ok = NormalizeSecret("0000111122223333")
	assert.False(t, ok, "not base32")
}
