// Package domain declares the encryption capability consumed by the
// aggregation engine. Implementations live in sibling packages.
package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidCiphertext = errors.New("invalid_ciphertext")
	ErrPlaintextOverflow = errors.New("plaintext_overflow")
	ErrInvalidKey        = errors.New("invalid_encryption_key")
)

// Ciphertext is an opaque, scheme-specific encoding.
type Ciphertext []byte

// PublicKeyInfo is what clients need to encrypt a value themselves.
type PublicKeyInfo struct {
	Scheme string            `json:"scheme"`
	Params map[string]string `json:"params,omitempty"`
}

// Scheme is the public half of an additively homomorphic scheme.
type Scheme interface {
	Name() string
	PublicKey() PublicKeyInfo
	Encrypt(plaintext int64) (Ciphertext, error)
	// Add returns Enc(a+b).
	Add(a, b Ciphertext) (Ciphertext, error)
	// Scale returns Enc(k*m) for c = Enc(m).
	Scale(c Ciphertext, k int64) (Ciphertext, error)
	// Validate rejects malformed ciphertexts without decrypting them.
	Validate(c Ciphertext) error
}

// KeyHolder is the secret half. Only the coprocessor holds one.
type KeyHolder interface {
	Decrypt(c Ciphertext) (int64, error)
}

// Oracle answers questions about ciphertexts without handing out plaintexts.
// RangeCheck leaks a single boolean; RequestDecrypt delivers the plaintext
// later through the registered decryption handler.
type Oracle interface {
	RangeCheck(ctx context.Context, c Ciphertext, lo, hi int64) (bool, error)
	RequestDecrypt(ctx context.Context, c Ciphertext) (string, error)
}

// DecryptionHandler receives the result of a RequestDecrypt call.
type DecryptionHandler func(ctx context.Context, requestID string, plaintext int64) error
