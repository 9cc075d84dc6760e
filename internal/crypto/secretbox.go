package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrEmptySecret    = errors.New("credentials secret must not be empty")
	ErrInvalidPayload = errors.New("invalid secret payload")
	ErrDecryption     = errors.New("decryption failed: invalid key or corrupted payload")
)

// SecretBox encrypts device credentials at rest with AES-256-GCM.
// The key is derived from a configured secret via SHA-256, so the same
// secret always yields the same key across restarts.
type SecretBox struct {
	key []byte
}

func NewSecretBox(secret string) (*SecretBox, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	sum := sha256.Sum256([]byte(secret))
	return &SecretBox{key: sum[:]}, nil
}

// Encrypt seals plaintext and returns a payload in the form
// base64(nonce):base64(ciphertext):base64(tag).
func (b *SecretBox) Encrypt(plaintext string) (string, error) {
	gcm, err := b.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	// Seal appends the tag to the ciphertext; split them so the payload
	// keeps the nonce:ciphertext:tag layout used by the credential store.
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	tagSize := gcm.Overhead()
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	enc := base64.StdEncoding
	return fmt.Sprintf("%s:%s:%s", enc.EncodeToString(nonce), enc.EncodeToString(ct), enc.EncodeToString(tag)), nil
}

// Decrypt opens a payload produced by Encrypt. The error is intentionally
// generic so callers cannot distinguish a wrong key from a tampered payload.
func (b *SecretBox) Decrypt(payload string) (string, error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 {
		return "", ErrInvalidPayload
	}

	enc := base64.StdEncoding
	nonce, err := enc.DecodeString(parts[0])
	if err != nil {
		return "", ErrInvalidPayload
	}
	ct, err := enc.DecodeString(parts[1])
	if err != nil {
		return "", ErrInvalidPayload
	}
	tag, err := enc.DecodeString(parts[2])
	if err != nil {
		return "", ErrInvalidPayload
	}

	gcm, err := b.gcm()
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", ErrInvalidPayload
	}

	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}

func (b *SecretBox) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
