package codec

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealedKeyInfo = "tapledb sealed codec v1"

// Sealed encrypts the output of another codec with XChaCha20-Poly1305.
// Stored layout: [nonce(24)][ciphertext+tag].
type Sealed[V any] struct {
	inner Codec[V]
	aead  cipher.AEAD
}

// NewSealed returns a Sealed codec using a 32 byte key.
func NewSealed[V any](inner Codec[V], key []byte) (*Sealed[V], error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Sealed[V]{inner: inner, aead: aead}, nil
}

// KeyFromSecret derives a sealing key from an arbitrary secret string.
func KeyFromSecret(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("empty secret")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealedKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

func (c *Sealed[V]) Encode(value V) ([]byte, error) {
	plaintext, err := c.inner.Encode(value)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, &SerializeError{Err: fmt.Errorf("failed to generate nonce: %w", err)}
	}

	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *Sealed[V]) Decode(data []byte) (V, error) {
	var zero V

	if len(data) < c.aead.NonceSize()+c.aead.Overhead() {
		return zero, &DeserializeError{Err: fmt.Errorf("%w: sealed value of %d bytes", ErrShortFrame, len(data))}
	}

	nonce, ciphertext := data[:c.aead.NonceSize()], data[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return zero, &DeserializeError{Err: fmt.Errorf("failed to decrypt value: %w", err)}
	}

	return c.inner.Decode(plaintext)
}
