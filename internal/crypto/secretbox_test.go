package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box, err := NewSecretBox("unit-test-secret")
	require.NoError(t, err)

	for _, plaintext := range []string{"admin123", "", "p@ss:word/with:colons", "пароль"} {
		payload, err := box.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := box.Decrypt(payload)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptProducesUniqueNonces(t *testing.T) {
	box, err := NewSecretBox("unit-test-secret")
	require.NoError(t, err)

	a, err := box.Encrypt("same-value")
	require.NoError(t, err)
	b, err := box.Encrypt("same-value")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "two encryptions of the same value must differ")
}

func TestDecryptWrongKey(t *testing.T) {
	box1, _ := NewSecretBox("secret-one")
	box2, _ := NewSecretBox("secret-two")

	payload, err := box1.Encrypt("topsecret")
	require.NoError(t, err)

	_, err = box2.Decrypt(payload)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestDecryptMalformedPayload(t *testing.T) {
	box, _ := NewSecretBox("unit-test-secret")

	for _, payload := range []string{
		"",
		"only-one-part",
		"a:b",
		"!!!:!!!:!!!",
		"YWJj:YWJj", // two parts
	} {
		_, err := box.Decrypt(payload)
		assert.ErrorIs(t, err, ErrInvalidPayload, "payload %q", payload)
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	box, _ := NewSecretBox("unit-test-secret")

	payload, err := box.Encrypt("topsecret")
	require.NoError(t, err)

	parts := strings.Split(payload, ":")
	require.Len(t, parts, 3)
	// Flip the tag for a fresh valid-base64 but wrong value.
	parts[2] = strings.Repeat("A", len(parts[2])-2) + "=="
	_, err = box.Decrypt(strings.Join(parts, ":"))
	assert.Error(t, err)
}

func TestNewSecretBoxEmptySecret(t *testing.T) {
	_, err := NewSecretBox("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
