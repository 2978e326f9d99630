package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
)

const aes256KeySize = 32

// DecryptFailedPlaceholder is rendered in place of a message body that
// could not be decrypted. A single corrupt or foreign-encrypted message
// degrades to this marker instead of failing the whole conversation.
const DecryptFailedPlaceholder = "[unable to decrypt]"

// Encrypt encrypts plaintext with the session key using AES-256-GCM and
// returns base64-encoded ciphertext and IV. A fresh random 96-bit IV is
// generated per call and never reused.
func Encrypt(plaintext string) (ciphertext, iv string, err error) {
	aead, err := newAEAD(SessionKey())
	if err != nil {
		return "", "", err
	}

	rawIV := make([]byte, aead.NonceSize())
	if _, err := rand.Read(rawIV); err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}

	rawCiphertext := aead.Seal(nil, rawIV, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(rawCiphertext), base64.StdEncoding.EncodeToString(rawIV), nil
}

// Decrypt decodes and decrypts a base64 ciphertext/IV pair with the
// session key.
func Decrypt(ciphertext, iv string) (string, error) {
	if ciphertext == "" {
		return "", errors.New("ciphertext is required")
	}

	rawCiphertext, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	rawIV, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return "", fmt.Errorf("decode IV: %w", err)
	}

	aead, err := newAEAD(SessionKey())
	if err != nil {
		return "", err
	}
	if len(rawIV) != aead.NonceSize() {
		return "", fmt.Errorf("invalid nonce length: got %d want %d", len(rawIV), aead.NonceSize())
	}

	plaintext, err := aead.Open(nil, rawIV, rawCiphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt ciphertext: %w", err)
	}

	return string(plaintext), nil
}

// DecryptOrPlaceholder decrypts a message body, degrading to
// DecryptFailedPlaceholder on any failure. Failures are logged, never
// propagated: the caller always receives something renderable.
func DecryptOrPlaceholder(ciphertext, iv string) string {
	plaintext, err := Decrypt(ciphertext, iv)
	if err != nil {
		log.Printf("crypto: decrypt failed, rendering placeholder: %v", err)
		return DecryptFailedPlaceholder
	}
	return plaintext
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != aes256KeySize {
		return nil, fmt.Errorf("invalid session key length: got %d want %d", len(key), aes256KeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return aead, nil
}
