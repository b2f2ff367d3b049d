package auth

// Spotify access and refresh tokens are bearer credentials: anyone holding
// the refresh token can act as the user until they revoke the app. The
// session store therefore only ever sees sealed values.
//
//	key    = HKDF-SHA256(SESSION_SECRET, info="albumrank session tokens")
//	sealed = base64( nonce(24) || XChaCha20-Poly1305(key, nonce, plaintext) )
//
// XChaCha20's 24-byte nonce is large enough to pick at random for every
// seal without tracking counters.

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealerInfo = "albumrank session tokens"

// Sealer encrypts and authenticates short secrets with a key derived from
// the session secret.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the sealing key from secret.
func NewSealer(secret string) (*Sealer, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealerInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("auth: deriving sealing key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("auth: creating cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext. Sealing the same value twice yields different
// outputs.
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("auth: generating nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawStdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. It fails if the value was tampered with or sealed
// under another secret.
func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("auth: decoding sealed value: %w", err)
	}
	if len(raw) < s.aead.NonceSize() {
		return "", errors.New("auth: sealed value too short")
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("auth: opening sealed value: %w", err)
	}
	return string(plain), nil
}
