// Package keyseal protects key material at rest with AES-256-GCM under an
// argon2id derived key.
package keyseal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidSecret   = errors.New("keyseal: invalid secret")
	ErrInvalidEnvelope = errors.New("keyseal: invalid sealed envelope")
	ErrOpen            = errors.New("keyseal: cannot open envelope")
)

const (
	envelopeVersion = 1
	saltSize        = 16
	keySize         = 32
)

// argon2id parameters; changing them requires a new envelope version.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
)

// additionalData binds envelopes to their purpose so a sealed blob from
// another system cannot be replayed as a key file.
var additionalData = []byte("cipherpoll/key-file")

type envelope struct {
	Version    int    `json:"sealed_v"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type Sealer struct {
	secret []byte
}

// New returns a sealer for secret. Keys are derived per envelope with
// argon2id and a random salt.
func New(secret string) (*Sealer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrInvalidSecret
	}
	return &Sealer{secret: []byte(secret)}, nil
}

func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(s.secret, salt, kdfTime, kdfMemory, kdfThreads, keySize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	aead, err := s.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return json.MarshalIndent(envelope{
		Version:    envelopeVersion,
		Salt:       base64.RawStdEncoding.EncodeToString(salt),
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(aead.Seal(nil, nonce, plaintext, additionalData)),
	}, "", "  ")
}

func (s *Sealer) Open(data []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Version != envelopeVersion {
		return nil, ErrInvalidEnvelope
	}
	salt, err := base64.RawStdEncoding.DecodeString(env.Salt)
	if err != nil || len(salt) != saltSize {
		return nil, ErrInvalidEnvelope
	}
	aead, err := s.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce, err := base64.RawStdEncoding.DecodeString(env.Nonce)
	if err != nil || len(nonce) != aead.NonceSize() {
		return nil, ErrInvalidEnvelope
	}
	ct, err := base64.RawStdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, ErrInvalidEnvelope
	}
	plaintext, err := aead.Open(nil, nonce, ct, additionalData)
	if err != nil {
		return nil, ErrOpen
	}
	return plaintext, nil
}

// IsSealed reports whether data looks like a sealed envelope.
func IsSealed(data []byte) bool {
	var env envelope
	return json.Unmarshal(data, &env) == nil && env.Version == envelopeVersion && env.Ciphertext != ""
}
