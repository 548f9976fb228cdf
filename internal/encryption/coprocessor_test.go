package encryption

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
	"github.com/railzwaylabs/cipherpoll/internal/encryption/paillier"
	"github.com/railzwaylabs/cipherpoll/internal/encryption/plaintext"
	"github.com/railzwaylabs/cipherpoll/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCoprocessor(pair KeyPair) *Coprocessor {
	return NewCoprocessor(pair, zap.NewNop(), observability.NopMetrics())
}

func TestRangeCheck(t *testing.T) {
	c := newCoprocessor(PlaintextPair())
	ctx := context.Background()

	tests := []struct {
		name  string
		value int64
		want  bool
	}{
		{"below", 9, false},
		{"lower bound", 10, true},
		{"inside", 42, true},
		{"upper bound", 90, true},
		{"above", 91, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := c.RangeCheck(ctx, plaintext.MustEncrypt(tt.value), 10, 90)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	_, err := c.RangeCheck(ctx, domain.Ciphertext("nope"), 0, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidCiphertext)
}

func TestRequestDecrypt_DeliveredOnDrain(t *testing.T) {
	c := newCoprocessor(PlaintextPair())
	ctx := context.Background()

	got := map[string]int64{}
	c.OnDecrypted(func(_ context.Context, id string, v int64) error {
		got[id] = v
		return nil
	})

	id, err := c.RequestDecrypt(ctx, plaintext.MustEncrypt(77))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Pending())
	assert.Empty(t, got)

	n, err := c.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(77), got[id])
	assert.Equal(t, 0, c.Pending())
}

func TestDrain_NoHandlerKeepsQueue(t *testing.T) {
	c := newCoprocessor(PlaintextPair())
	_, err := c.RequestDecrypt(context.Background(), plaintext.MustEncrypt(1))
	require.NoError(t, err)

	_, err = c.Drain(context.Background())
	assert.ErrorIs(t, err, ErrNoHandler)
	assert.Equal(t, 1, c.Pending())
}

func TestDrain_HandlerErrorIsReported(t *testing.T) {
	c := newCoprocessor(PlaintextPair())
	rejected := errors.New("stale")
	c.OnDecrypted(func(context.Context, string, int64) error { return rejected })

	_, _ = c.RequestDecrypt(context.Background(), plaintext.MustEncrypt(1))
	_, err := c.Drain(context.Background())
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, 0, c.Pending())
}

func TestRun_DeliversAsynchronously(t *testing.T) {
	sk, err := paillier.GenerateKey(rand.Reader, 512)
	require.NoError(t, err)
	c := newCoprocessor(PaillierPair(sk))

	results := make(chan int64, 1)
	c.OnDecrypted(func(_ context.Context, _ string, v int64) error {
		results <- v
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	ct, err := sk.Encrypt(-12)
	require.NoError(t, err)
	_, err = c.RequestDecrypt(ctx, ct)
	require.NoError(t, err)

	select {
	case v := <-results:
		assert.Equal(t, int64(-12), v)
	case <-time.After(5 * time.Second):
		t.Fatal("decryption was not delivered")
	}
}
