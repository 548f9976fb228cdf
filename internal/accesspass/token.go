package accesspass

import (
	"crypto/ed25519"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims carries a pass payload as a compact EdDSA JWT. The holder is the
// subject; times are truncated to whole seconds.
type tokenClaims struct {
	jwt.RegisteredClaims
	ChannelID uint64 `json:"channel_id"`
}

// SignToken encodes payload as a JWT signed with priv.
func SignToken(priv ed25519.PrivateKey, payload Payload) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        payload.ID,
			Subject:   payload.Holder,
			Issuer:    payload.Issuer,
			IssuedAt:  jwt.NewNumericDate(payload.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(payload.ExpiresAt),
		},
		ChannelID: payload.ChannelID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
}

// ParseToken verifies a pass token and that it is still valid at now.
func (v *Verifier) ParseToken(raw string, now time.Time) (*Payload, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return v.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
			return nil, ErrInvalidSignature
		}
		return nil, ErrInvalidFormat
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidFormat
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return nil, ErrExpired
	}

	payload := &Payload{
		ID:        claims.ID,
		Holder:    claims.Subject,
		ChannelID: claims.ChannelID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
		Issuer:    claims.Issuer,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return payload, nil
}
