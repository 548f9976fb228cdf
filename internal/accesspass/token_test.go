package accesspass

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/railzwaylabs/cipherpoll/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	verifier := NewVerifier(pub)

	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	payload := Payload{ID: "9", Holder: "bob", ChannelID: 3, ExpiresAt: issued.Add(time.Hour), IssuedAt: issued, Issuer: "cipherpoll"}

	token, err := SignToken(priv, payload)
	require.NoError(t, err)

	got, err := verifier.ParseToken(token, issued)
	require.NoError(t, err)
	assert.Equal(t, payload, *got)

	_, err = verifier.ParseToken(token, issued.Add(time.Hour))
	assert.ErrorIs(t, err, ErrExpired)

	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, err = NewVerifier(otherPub).ParseToken(token, issued)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = verifier.ParseToken("not.a.token", issued)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestFactoryToken(t *testing.T) {
	f := newFactory(t)
	ctx := context.Background()

	_, err := f.Token(ctx, "bob", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.MintOrExtend(ctx, "bob", 1, now.Add(24*time.Hour))
	require.NoError(t, err)

	token, err := f.Token(ctx, "BOB", 1)
	require.NoError(t, err)

	payload, err := f.VerifyToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "bob", payload.Holder)
	assert.Equal(t, uint64(1), payload.ChannelID)

	_, err = f.VerifyToken(clock.WithTime(ctx, now.Add(25*time.Hour)), token)
	assert.ErrorIs(t, err, ErrExpired)
}
