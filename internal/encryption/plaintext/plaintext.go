// Package plaintext is a transparent stand-in for a homomorphic scheme. Its
// ciphertexts are tagged cleartext, so it must only be used in tests and local
// development.
package plaintext

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
)

const SchemeName = "plaintext"

var magic = []byte("PTv1")

const size = 4 + 8

type Scheme struct{}

func New() Scheme { return Scheme{} }

func (Scheme) Name() string { return SchemeName }

func (Scheme) PublicKey() domain.PublicKeyInfo {
	return domain.PublicKeyInfo{Scheme: SchemeName}
}

func (Scheme) Encrypt(v int64) (domain.Ciphertext, error) {
	return encode(v), nil
}

// MustEncrypt is a test convenience.
func MustEncrypt(v int64) domain.Ciphertext {
	return encode(v)
}

func (Scheme) Add(a, b domain.Ciphertext) (domain.Ciphertext, error) {
	x, err := decode(a)
	if err != nil {
		return nil, err
	}
	y, err := decode(b)
	if err != nil {
		return nil, err
	}
	if (y > 0 && x > math.MaxInt64-y) || (y < 0 && x < math.MinInt64-y) {
		return nil, domain.ErrPlaintextOverflow
	}
	return encode(x + y), nil
}

func (Scheme) Scale(c domain.Ciphertext, k int64) (domain.Ciphertext, error) {
	x, err := decode(c)
	if err != nil {
		return nil, err
	}
	if x != 0 && k != 0 {
		p := x * k
		if p/k != x || (x == -1 && k == math.MinInt64) || (k == -1 && x == math.MinInt64) {
			return nil, domain.ErrPlaintextOverflow
		}
		return encode(p), nil
	}
	return encode(0), nil
}

func (Scheme) Validate(c domain.Ciphertext) error {
	_, err := decode(c)
	return err
}

func (Scheme) Decrypt(c domain.Ciphertext) (int64, error) {
	return decode(c)
}

func encode(v int64) domain.Ciphertext {
	out := make([]byte, size)
	copy(out, magic)
	binary.BigEndian.PutUint64(out[4:], uint64(v))
	return out
}

func decode(c domain.Ciphertext) (int64, error) {
	if len(c) != size || !bytes.Equal(c[:4], magic) {
		return 0, domain.ErrInvalidCiphertext
	}
	return int64(binary.BigEndian.Uint64(c[4:])), nil
}
