package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatenexy/config"
)

func TestTokenEncryptionRoundTrip(t *testing.T) {
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"

	token := "7130000000:AAFa0b-test-bot-token"
	encrypted, err := EncryptToken(token)
	require.NoError(t, err)
	assert.NotEqual(t, token, encrypted)

	decrypted, err := DecryptToken(encrypted)
	require.NoError(t, err)
	assert.Equal(t, token, decrypted)
}

func TestEncryptTokenUniqueCiphertexts(t *testing.T) {
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"

	a, err := EncryptToken("same-token")
	require.NoError(t, err)
	b, err := EncryptToken("same-token")
	require.NoError(t, err)

	// Random IV per encryption.
	assert.NotEqual(t, a, b)
}

func TestEmptyTokenPassesThrough(t *testing.T) {
	encrypted, err := EncryptToken("")
	require.NoError(t, err)
	assert.Empty(t, encrypted)

	decrypted, err := DecryptToken("")
	require.NoError(t, err)
	assert.Empty(t, decrypted)
}

func TestDecryptTokenRejectsGarbage(t *testing.T) {
	config.AppConfig.EncryptionKey = "0123456789abcdef0123456789abcdef"

	_, err := DecryptToken("not base64 at all!!!")
	assert.Error(t, err)

	_, err = DecryptToken("c2hvcnQ=")
	assert.Error(t, err)
}
