// Package encryption protects tenant secrets at rest with AES-256-GCM.
//
// Ciphertexts are base64([version][salt][iv][ciphertext+tag]). Every call
// draws a fresh salt, and the AES key is derived from the master key and that
// salt with HKDF-SHA256.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	version   byte = 0x01
	saltLen        = 16
	ivLen          = 12
	tagLen         = 16
	keyLen         = 32
	minKeyLen      = 32
	info           = "emitkit-integration-encryption"
)

const placeholderKey = "your-encryption-key-here"

type Cipher struct {
	master []byte
}

// New validates the master key and returns a Cipher using it.
func New(masterKey string) (*Cipher, error) {
	if err := ValidateKey(masterKey); err != nil {
		return nil, err
	}
	return &Cipher{master: []byte(masterKey)}, nil
}

// ValidateKey rejects short keys and obvious placeholders.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is not set, generate one with `openssl rand -base64 32`", ErrInvalidKey)
	}
	if len(key) < minKeyLen {
		return fmt.Errorf("%w: key must be at least %d bytes, got %d", ErrInvalidKey, minKeyLen, len(key))
	}
	if key == placeholderKey ||
		strings.Contains(key, "password") ||
		strings.Contains(key, "secret") ||
		strings.Count(key, key[:1]) == len(key) {
		return fmt.Errorf("%w: key looks like a placeholder or weak pattern", ErrInvalidKey)
	}
	return nil
}

func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, c.master, salt, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext. Two calls with the same input produce different output.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	buf := make([]byte, 1+saltLen+ivLen, 1+saltLen+ivLen+len(plaintext)+tagLen)
	buf[0] = version
	salt := buf[1 : 1+saltLen]
	iv := buf[1+saltLen:]

	if _, err := rand.Read(salt); err != nil {
		return "", encryptError(CodeEncryptionFailed, "failed to generate salt", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return "", encryptError(CodeEncryptionFailed, "failed to generate iv", err)
	}

	aead, err := c.aead(salt)
	if err != nil {
		return "", encryptError(CodeEncryptionFailed, "failed to encrypt data", err)
	}

	out := aead.Seal(buf, iv, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a value produced by Encrypt.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", decryptError(CodeInvalidFormat, "invalid encrypted data: not base64", err)
	}

	minLen := 1 + saltLen + ivLen + tagLen
	if len(data) < minLen {
		return "", decryptError(CodeInvalidFormat,
			fmt.Sprintf("invalid encrypted data: too short (%d bytes, expected at least %d)", len(data), minLen), nil)
	}
	if data[0] != version {
		return "", decryptError(CodeUnsupportedVersion,
			fmt.Sprintf("unsupported encryption version: %d (expected %d)", data[0], version), nil)
	}

	salt := data[1 : 1+saltLen]
	iv := data[1+saltLen : 1+saltLen+ivLen]
	sealed := data[1+saltLen+ivLen:]

	aead, err := c.aead(salt)
	if err != nil {
		return "", decryptError(CodeDecryptionFailed, "failed to derive key", err)
	}
	plain, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", decryptError(CodeDecryptionFailed,
			"failed to decrypt data, it may be corrupted or encrypted with a different key", err)
	}
	return string(plain), nil
}
