package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"dvsafe-service/internal/domain/ports/adapter"
)

var (
	// ErrInvalidKey is returned for anything but a 32-byte key.
	ErrInvalidKey = errors.New("message key must be 32 bytes")
	// ErrMalformedCiphertext covers unknown envelopes, bad encoding and
	// authentication failures alike. Callers never learn which.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

// envelopeV1 prefixes every sealed message: v1.base64url(nonce || sealed).
const envelopeV1 = "v1."

var _ adapter.Encryptor = (*EncryptionService)(nil)

// EncryptionService seals safe-chat message content with AES-256-GCM. The
// associated data (the chat id) is authenticated but not stored, so a
// ciphertext copied into another chat no longer opens.
type EncryptionService struct {
	aead cipher.AEAD
}

func NewEncryptionService(key string) (*EncryptionService, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &EncryptionService{aead: aead}, nil
}

func (e *EncryptionService) Encrypt(plaintext, aad string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), []byte(aad))
	return envelopeV1 + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (e *EncryptionService) Decrypt(ciphertext, aad string) (string, error) {
	body, ok := strings.CutPrefix(ciphertext, envelopeV1)
	if !ok {
		return "", ErrMalformedCiphertext
	}
	data, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil || len(data) < e.aead.NonceSize()+e.aead.Overhead() {
		return "", ErrMalformedCiphertext
	}
	ns := e.aead.NonceSize()
	pt, err := e.aead.Open(nil, data[:ns], data[ns:], []byte(aad))
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	return string(pt), nil
}
