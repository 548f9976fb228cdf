package plaintext

import (
	"math"
	"testing"

	"github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmetic(t *testing.T) {
	s := New()
	sum, err := s.Add(MustEncrypt(40), MustEncrypt(2))
	require.NoError(t, err)
	v, err := s.Decrypt(sum)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	scaled, err := s.Scale(MustEncrypt(-7), 3)
	require.NoError(t, err)
	v, _ = s.Decrypt(scaled)
	assert.Equal(t, int64(-21), v)
}

func TestOverflow(t *testing.T) {
	s := New()
	_, err := s.Add(MustEncrypt(math.MaxInt64), MustEncrypt(1))
	assert.ErrorIs(t, err, domain.ErrPlaintextOverflow)

	_, err = s.Scale(MustEncrypt(math.MaxInt64), 2)
	assert.ErrorIs(t, err, domain.ErrPlaintextOverflow)
}

func TestValidate(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Validate(domain.Ciphertext("garbage")), domain.ErrInvalidCiphertext)
	assert.NoError(t, s.Validate(MustEncrypt(1)))
}
