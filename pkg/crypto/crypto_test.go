package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	sealed, err := Encrypt("wallet-secret-material", "passphrase")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "wallet-secret-material")

	opened, err := Decrypt(sealed, "passphrase")
	require.NoError(t, err)
	assert.Equal(t, "wallet-secret-material", opened)
}

func TestDecrypt_WrongPassphrase(t *testing.T) {
	sealed, err := Encrypt("secret", "right")
	require.NoError(t, err)

	_, err = Decrypt(sealed, "wrong")
	assert.Error(t, err)
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	a, err := Encrypt("secret", "pass")
	require.NoError(t, err)
	b, err := Encrypt("secret", "pass")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "identical plaintexts must not produce identical ciphertexts")
}

func TestDecrypt_Garbage(t *testing.T) {
	_, err := Decrypt("not-hex", "pass")
	assert.Error(t, err)

	_, err = Decrypt("abcd", "pass")
	assert.Error(t, err)
}
