package managers

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrSealedMismatch means that sealed value cannot be decrypted.
//
// It covers both unsupported format tag and failed authentication of
// ciphertext, so any tampered or corrupted value fails closed.
var ErrSealedMismatch = errors.New("sealed value mismatch")

const (
	sealedVersion = "v1"
	sealedSaltLen = 16
)

// SecretBox encrypts short secrets with key derived from passphrase.
//
// Key is derived with Argon2id and content is sealed with AES-GCM.
type SecretBox struct {
	passphrase []byte
}

// NewSecretBox returns new secret box with specified passphrase.
func NewSecretBox(passphrase string) *SecretBox {
	return &SecretBox{passphrase: []byte(passphrase)}
}

// Seal returns encrypted value in versioned transport format.
func (b *SecretBox) Seal(value string) (string, error) {
	salt := make([]byte, sealedSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	gcm, err := b.cipher(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	payload := append(salt, nonce...)
	payload = gcm.Seal(payload, nonce, []byte(value), nil)
	return fmt.Sprintf(
		"%s:%s", sealedVersion, base64.StdEncoding.EncodeToString(payload),
	), nil
}

// Open decrypts value sealed with same passphrase.
//
// Returns ErrSealedMismatch if value has unknown format or cannot be
// authenticated with current passphrase.
func (b *SecretBox) Open(sealed string) (string, error) {
	version, encoded, ok := strings.Cut(sealed, ":")
	if !ok || version != sealedVersion {
		return "", ErrSealedMismatch
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrSealedMismatch
	}
	if len(payload) < sealedSaltLen {
		return "", ErrSealedMismatch
	}
	salt, payload := payload[:sealedSaltLen], payload[sealedSaltLen:]
	gcm, err := b.cipher(salt)
	if err != nil {
		return "", err
	}
	if len(payload) < gcm.NonceSize() {
		return "", ErrSealedMismatch
	}
	nonce, payload := payload[:gcm.NonceSize()], payload[gcm.NonceSize():]
	value, err := gcm.Open(nil, nonce, payload, nil)
	if err != nil {
		return "", ErrSealedMismatch
	}
	return string(value), nil
}

func (b *SecretBox) cipher(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(b.passphrase, salt, 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
