// Package crypto protects the wallet key at rest with a passphrase.
package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	SaltSize  = 16
	NonceSize = chacha20poly1305.NonceSizeX

	MinPassphraseLength = 8
)

var (
	ErrDecryptionFailed  = errors.New("decryption failed: wrong passphrase or corrupted data")
	ErrInvalidCiphertext = errors.New("ciphertext too short")

	ErrPassphraseTooShort = fmt.Errorf("passphrase must be at least %d characters", MinPassphraseLength)
	ErrPassphraseMismatch = errors.New("passphrases do not match")
)

// Params are the Argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

var DefaultParams = Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  chacha20poly1305.KeySize,
}

func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

func (p Params) DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

func Encrypt(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func Decrypt(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrInvalidCiphertext
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, ciphertext[:NonceSize], ciphertext[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Seal encrypts plaintext under a key derived from passphrase and a fresh salt.
func (p Params) Seal(passphrase string, plaintext []byte) (salt, ciphertext []byte, err error) {
	salt, err = GenerateSalt()
	if err != nil {
		return nil, nil, err
	}
	key := p.DeriveKey(passphrase, salt)
	defer clear(key)

	ciphertext, err = Encrypt(key, plaintext)
	if err != nil {
		return nil, nil, err
	}
	return salt, ciphertext, nil
}

func (p Params) Open(passphrase string, salt, ciphertext []byte) ([]byte, error) {
	key := p.DeriveKey(passphrase, salt)
	defer clear(key)
	return Decrypt(key, ciphertext)
}

// CheckPassphrase validates a newly chosen passphrase and its confirmation.
func CheckPassphrase(passphrase, confirm string) error {
	if len(passphrase) < MinPassphraseLength {
		return ErrPassphraseTooShort
	}
	if passphrase != confirm {
		return ErrPassphraseMismatch
	}
	return nil
}
