// Package vaultcrypto implements the Ansible Vault AES256 cipher suite:
// PBKDF2-SHA256 key stretching, AES-256 in CTR mode, and an HMAC-SHA256
// authenticator over the ciphertext. Key material is derived fresh for
// every call and discarded; nothing in this package holds state.
package vaultcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltLength is the byte length of the random salt generated per encryption.
	SaltLength = 32

	// keyDerivationIterations is the PBKDF2 iteration count used by Ansible.
	keyDerivationIterations = 10000

	// derivedKeyLength is the AES-256 key length.
	derivedKeyLength = 32
	// hmacKeyLength is the HMAC-SHA256 key length.
	hmacKeyLength = 32
	// aesBlockSize is the AES block size, also the CTR IV length.
	aesBlockSize = 16
)

// ErrAuthenticationFailed indicates an HMAC mismatch: either the secret is
// wrong or the ciphertext was tampered with. No plaintext is ever returned
// alongside it.
var ErrAuthenticationFailed = errors.New("vault authentication failed (wrong secret or corrupted data)")

// ErrMissingSecret indicates that a transform was requested with an empty
// secret. The operation is never attempted.
var ErrMissingSecret = errors.New("no vault secret provided")

// ErrInvalidPadding indicates authenticated ciphertext whose plaintext does
// not carry valid PKCS7 padding.
var ErrInvalidPadding = errors.New("invalid padding")

// Cipher is the cohesive derive/encrypt/authenticate capability the toggle
// engine depends on. Implementations must be safe for use from a single
// goroutine without shared state between calls.
type Cipher interface {
	// Encrypt seals plaintext under secret with a fresh random salt and
	// returns the raw envelope fields.
	Encrypt(plaintext, secret []byte) (salt, mac, ciphertext []byte, err error)
	// Decrypt verifies mac over ciphertext in constant time and, only on
	// success, returns the plaintext.
	Decrypt(salt, mac, ciphertext, secret []byte) ([]byte, error)
}

// AES256 is the one cipher suite Ansible Vault defines.
type AES256 struct{}

var _ Cipher = AES256{}

// keyMaterial holds the ephemeral keys derived for a single call.
type keyMaterial struct {
	aesKey  []byte
	hmacKey []byte
	iv      []byte
}

// deriveKeys stretches secret with salt into the AES key, HMAC key, and CTR
// IV. Deterministic for a given (secret, salt) pair.
func deriveKeys(secret, salt []byte) keyMaterial {
	derived := pbkdf2.Key(secret, salt, keyDerivationIterations,
		derivedKeyLength+hmacKeyLength+aesBlockSize, sha256.New)
	return keyMaterial{
		aesKey:  derived[:derivedKeyLength],
		hmacKey: derived[derivedKeyLength : derivedKeyLength+hmacKeyLength],
		iv:      derived[derivedKeyLength+hmacKeyLength:],
	}
}

// Encrypt implements Cipher.
func (AES256) Encrypt(plaintext, secret []byte) (salt, mac, ciphertext []byte, err error) {
	if len(secret) == 0 {
		return nil, nil, nil, ErrMissingSecret
	}

	salt = make([]byte, SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, nil, fmt.Errorf("generate salt: %w", err)
	}

	keys := deriveKeys(secret, salt)

	block, err := aes.NewCipher(keys.aesKey)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aesBlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCTR(block, keys.iv).XORKeyStream(ciphertext, padded)

	h := hmac.New(sha256.New, keys.hmacKey)
	h.Write(ciphertext)
	mac = h.Sum(nil)

	return salt, mac, ciphertext, nil
}

// Decrypt implements Cipher.
func (AES256) Decrypt(salt, mac, ciphertext, secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	keys := deriveKeys(secret, salt)

	h := hmac.New(sha256.New, keys.hmacKey)
	h.Write(ciphertext)
	if !hmac.Equal(mac, h.Sum(nil)) {
		return nil, ErrAuthenticationFailed
	}

	block, err := aes.NewCipher(keys.aesKey)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCTR(block, keys.iv).XORKeyStream(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, aesBlockSize)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// pkcs7Pad pads data to a whole number of blocks. Empty input pads to one
// full block, so empty plaintext round-trips.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - (len(data) % blockSize)
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, ErrInvalidPadding
	}
	for i := len(data) - padding; i < len(data); i++ {
		if data[i] != byte(padding) {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-padding], nil
}
