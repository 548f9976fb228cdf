package accesspass

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidSignature = errors.New("invalid_access_pass_signature")
	ErrExpired          = errors.New("access_pass_expired")
	ErrInvalidFormat    = errors.New("invalid_access_pass_format")
)

// Pass is the signed, portable entitlement handed to a subscriber.
type Pass struct {
	Payload   Payload `json:"payload"`
	Signature string  `json:"signature"`
}

// Payload contains the entitlement claims.
type Payload struct {
	ID        string    `json:"id"`
	Holder    string    `json:"holder"`
	ChannelID uint64    `json:"channel_id"`
	ExpiresAt time.Time `json:"expires_at"`
	IssuedAt  time.Time `json:"issued_at"`
	Issuer    string    `json:"issuer,omitempty"`
}

type Verifier struct {
	publicKey ed25519.PublicKey
}

func NewVerifier(publicKey ed25519.PublicKey) *Verifier {
	return &Verifier{publicKey: publicKey}
}

// ParseAndVerify checks the signature over the re-encoded payload and that the
// pass is still valid at now.
func (v *Verifier) ParseAndVerify(raw []byte, now time.Time) (*Payload, error) {
	var p Pass
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrInvalidFormat
	}
	sig, err := base64.StdEncoding.DecodeString(p.Signature)
	if err != nil {
		return nil, ErrInvalidFormat
	}

	payloadBytes, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, err
	}
	if !ed25519.Verify(v.publicKey, payloadBytes, sig) {
		return nil, ErrInvalidSignature
	}
	if !now.Before(p.Payload.ExpiresAt) {
		return nil, ErrExpired
	}
	return &p.Payload, nil
}

// Sign produces the JSON document for payload.
func Sign(priv ed25519.PrivateKey, payload Payload) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Pass{
		Payload:   payload,
		Signature: base64.StdEncoding.EncodeToString(ed25519.Sign(priv, payloadBytes)),
	})
}

// GenerateKeyPair returns base64 encoded private and public keys.
func GenerateKeyPair() (privateKey string, publicKey string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(priv), base64.StdEncoding.EncodeToString(pub), nil
}

func ParsePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid private key encoding: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid private key size")
	}
	return ed25519.PrivateKey(raw), nil
}
