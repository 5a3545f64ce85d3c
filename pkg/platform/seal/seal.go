// Package seal encrypts credential blobs at rest.
//
// A Sealer wraps AES-256-GCM with a key derived from the configured master
// secret via HKDF-SHA256. Sealed values are self-contained: nonce || ciphertext,
// base64url encoded, prefixed with a version tag so a future scheme change can
// coexist with old rows.
package seal

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

	"golang.org/x/crypto/hkdf"
)

const v1Prefix = "sealv1:"

// ErrMalformed is returned when a sealed value does not parse.
var ErrMalformed = errors.New("malformed sealed value")

// Sealer seals and opens credential blobs.
type Sealer struct {
	aead cipher.AEAD
}

// New derives the sealing key from the master secret and builds the AEAD.
// The secret can be any non-empty string; HKDF stretches it to 32 bytes.
func New(masterSecret string) (*Sealer, error) {
	if masterSecret == "" {
		return nil, errors.New("seal: master secret cannot be empty")
	}
	hk := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte("credential-seal"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, fmt.Errorf("seal: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("seal: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("seal: new gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext and returns the portable encoded form.
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("seal: nonce: %w", err)
	}
	ct := s.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return v1Prefix + base64.RawURLEncoding.EncodeToString(append(nonce, ct...)), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	raw, ok := strings.CutPrefix(sealed, v1Prefix)
	if !ok {
		return "", ErrMalformed
	}
	buf, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return "", ErrMalformed
	}
	ns := s.aead.NonceSize()
	if len(buf) < ns {
		return "", ErrMalformed
	}
	pt, err := s.aead.Open(nil, buf[:ns], buf[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("seal: open: %w", err)
	}
	return string(pt), nil
}

// IsSealed reports whether a stored value was produced by Seal. Lets stores
// read back rows written before sealing was enabled.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, v1Prefix)
}
