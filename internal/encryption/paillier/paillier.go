// Package paillier implements the Paillier additively homomorphic scheme with
// g = n+1. Signed plaintexts are encoded modulo n; values above n/2 decode as
// negative.
package paillier

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
)

const SchemeName = "paillier"

var one = big.NewInt(1)

type PublicKey struct {
	N        *big.Int
	NSquared *big.Int
	half     *big.Int
	size     int
	random   io.Reader
}

type PrivateKey struct {
	*PublicKey
	Lambda *big.Int
	Mu     *big.Int
}

// GenerateKey creates a key whose modulus n has the requested bit length.
func GenerateKey(random io.Reader, bits int) (*PrivateKey, error) {
	if bits < 256 {
		return nil, fmt.Errorf("%w: modulus must be at least 256 bits", domain.ErrInvalidKey)
	}
	if random == nil {
		random = rand.Reader
	}
	for {
		p, err := rand.Prime(random, bits/2)
		if err != nil {
			return nil, err
		}
		q, err := rand.Prime(random, bits-bits/2)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}
		n := new(big.Int).Mul(p, q)
		pm1 := new(big.Int).Sub(p, one)
		qm1 := new(big.Int).Sub(q, one)
		phi := new(big.Int).Mul(pm1, qm1)
		if new(big.Int).GCD(nil, nil, n, phi).Cmp(one) != 0 {
			continue
		}
		gcd := new(big.Int).GCD(nil, nil, pm1, qm1)
		lambda := new(big.Int).Div(phi, gcd)
		return NewPrivateKey(n, lambda)
	}
}

// NewPrivateKey rebuilds a key from n and lambda.
func NewPrivateKey(n, lambda *big.Int) (*PrivateKey, error) {
	pub, err := NewPublicKey(n)
	if err != nil {
		return nil, err
	}
	mu := new(big.Int).ModInverse(new(big.Int).Mod(lambda, n), n)
	if mu == nil {
		return nil, fmt.Errorf("%w: lambda not invertible mod n", domain.ErrInvalidKey)
	}
	return &PrivateKey{PublicKey: pub, Lambda: new(big.Int).Set(lambda), Mu: mu}, nil
}

func NewPublicKey(n *big.Int) (*PublicKey, error) {
	if n == nil || n.Sign() <= 0 || n.Bit(0) == 0 {
		return nil, fmt.Errorf("%w: modulus must be a positive odd integer", domain.ErrInvalidKey)
	}
	nn := new(big.Int).Mul(n, n)
	return &PublicKey{
		N:        new(big.Int).Set(n),
		NSquared: nn,
		half:     new(big.Int).Rsh(n, 1),
		size:     (nn.BitLen() + 7) / 8,
		random:   rand.Reader,
	}, nil
}

func (pk *PublicKey) Name() string { return SchemeName }

func (pk *PublicKey) PublicKey() domain.PublicKeyInfo {
	return domain.PublicKeyInfo{
		Scheme: SchemeName,
		Params: map[string]string{"n": hex.EncodeToString(pk.N.Bytes())},
	}
}

func (pk *PublicKey) Encrypt(plaintext int64) (domain.Ciphertext, error) {
	m := pk.encode(plaintext)

	r, err := pk.randomUnit()
	if err != nil {
		return nil, err
	}

	// (1+n)^m = 1 + m*n (mod n^2)
	gm := new(big.Int).Mul(m, pk.N)
	gm.Add(gm, one)
	gm.Mod(gm, pk.NSquared)

	rn := new(big.Int).Exp(r, pk.N, pk.NSquared)
	c := gm.Mul(gm, rn)
	c.Mod(c, pk.NSquared)
	return pk.marshal(c), nil
}

func (pk *PublicKey) Add(a, b domain.Ciphertext) (domain.Ciphertext, error) {
	ca, err := pk.unmarshal(a)
	if err != nil {
		return nil, err
	}
	cb, err := pk.unmarshal(b)
	if err != nil {
		return nil, err
	}
	sum := new(big.Int).Mul(ca, cb)
	sum.Mod(sum, pk.NSquared)
	return pk.marshal(sum), nil
}

func (pk *PublicKey) Scale(c domain.Ciphertext, k int64) (domain.Ciphertext, error) {
	cc, err := pk.unmarshal(c)
	if err != nil {
		return nil, err
	}
	base := cc
	exp := big.NewInt(k)
	if k < 0 {
		base = new(big.Int).ModInverse(cc, pk.NSquared)
		if base == nil {
			return nil, domain.ErrInvalidCiphertext
		}
		exp.Neg(exp)
	}
	return pk.marshal(new(big.Int).Exp(base, exp, pk.NSquared)), nil
}

func (pk *PublicKey) Validate(c domain.Ciphertext) error {
	_, err := pk.unmarshal(c)
	return err
}

func (sk *PrivateKey) Decrypt(c domain.Ciphertext) (int64, error) {
	cc, err := sk.unmarshal(c)
	if err != nil {
		return 0, err
	}
	x := new(big.Int).Exp(cc, sk.Lambda, sk.NSquared)
	x.Sub(x, one)
	x.Div(x, sk.N)
	x.Mul(x, sk.Mu)
	x.Mod(x, sk.N)
	return sk.decode(x)
}

func (pk *PublicKey) encode(v int64) *big.Int {
	m := big.NewInt(v)
	if v < 0 {
		m.Add(m, pk.N)
	}
	return m
}

func (pk *PublicKey) decode(m *big.Int) (int64, error) {
	v := new(big.Int).Set(m)
	if v.Cmp(pk.half) > 0 {
		v.Sub(v, pk.N)
	}
	if !v.IsInt64() {
		return 0, domain.ErrPlaintextOverflow
	}
	return v.Int64(), nil
}

func (pk *PublicKey) randomUnit() (*big.Int, error) {
	for {
		r, err := rand.Int(pk.random, pk.N)
		if err != nil {
			return nil, err
		}
		if r.Sign() == 0 {
			continue
		}
		if new(big.Int).GCD(nil, nil, r, pk.N).Cmp(one) == 0 {
			return r, nil
		}
	}
}

func (pk *PublicKey) marshal(c *big.Int) domain.Ciphertext {
	return c.FillBytes(make([]byte, pk.size))
}

// unmarshal applies the structural checks every accepted ciphertext must pass:
// fixed width, 0 < c < n^2 and gcd(c, n^2) = 1.
func (pk *PublicKey) unmarshal(raw domain.Ciphertext) (*big.Int, error) {
	if len(raw) != pk.size {
		return nil, domain.ErrInvalidCiphertext
	}
	c := new(big.Int).SetBytes(raw)
	if c.Sign() <= 0 || c.Cmp(pk.NSquared) >= 0 {
		return nil, domain.ErrInvalidCiphertext
	}
	if new(big.Int).GCD(nil, nil, c, pk.NSquared).Cmp(one) != 0 {
		return nil, domain.ErrInvalidCiphertext
	}
	return c, nil
}

// keyFile is the on-disk JSON form of a private key.
type keyFile struct {
	Scheme string `json:"scheme"`
	N      string `json:"n"`
	Lambda string `json:"lambda"`
}

func (sk *PrivateKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(keyFile{
		Scheme: SchemeName,
		N:      hex.EncodeToString(sk.N.Bytes()),
		Lambda: hex.EncodeToString(sk.Lambda.Bytes()),
	})
}

func ParsePrivateKey(raw []byte) (*PrivateKey, error) {
	var kf keyFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err)
	}
	if kf.Scheme != SchemeName {
		return nil, fmt.Errorf("%w: scheme %q", domain.ErrInvalidKey, kf.Scheme)
	}
	n, err := parseHex(kf.N)
	if err != nil {
		return nil, err
	}
	lambda, err := parseHex(kf.Lambda)
	if err != nil {
		return nil, err
	}
	return NewPrivateKey(n, lambda)
}

// ParsePublicKey accepts the params published by PublicKeyInfo.
func ParsePublicKey(info domain.PublicKeyInfo) (*PublicKey, error) {
	if info.Scheme != SchemeName {
		return nil, fmt.Errorf("%w: scheme %q", domain.ErrInvalidKey, info.Scheme)
	}
	n, err := parseHex(info.Params["n"])
	if err != nil {
		return nil, err
	}
	return NewPublicKey(n)
}

func parseHex(s string) (*big.Int, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 {
		return nil, errors.Join(domain.ErrInvalidKey, err)
	}
	return new(big.Int).SetBytes(b), nil
}
