package cachefile

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// seal encrypts plaintext with AES-256-GCM and returns the base64 of
// nonce (12 bytes) || ciphertext || tag. Without a key the value is returned
// unchanged and sealed is false.
func (s *Store) seal(plaintext string) (value string, sealed bool, err error) {
	if s.key == nil {
		return plaintext, false, nil
	}

	gcm, err := newGCM(s.key)
	if err != nil {
		return "", false, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", false, fmt.Errorf("rand nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), true, nil
}

// open reverses seal. Unsealed values are plaintext and pass through
// whatever they contain.
func (s *Store) open(value string, sealed bool) (string, error) {
	if !sealed {
		return value, nil
	}
	if s.key == nil {
		return "", errors.New("cached password is sealed but no cache key is configured")
	}

	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := newGCM(s.key)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
