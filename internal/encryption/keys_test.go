package encryption

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/railzwaylabs/cipherpoll/internal/config"
	"github.com/railzwaylabs/cipherpoll/internal/encryption/keyseal"
	"github.com/railzwaylabs/cipherpoll/internal/encryption/paillier"
	"github.com/railzwaylabs/cipherpoll/internal/encryption/plaintext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadKeyPair_GeneratesThenReloads(t *testing.T) {
	cfg := config.Config{Encryption: config.EncryptionConfig{
		Scheme:  "paillier",
		KeyFile: filepath.Join(t.TempDir(), "key.json"),
		KeyBits: 512,
	}}

	first, err := LoadKeyPair(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, paillier.SchemeName, first.Scheme.Name())

	ct, err := first.Scheme.Encrypt(31)
	require.NoError(t, err)

	second, err := LoadKeyPair(cfg, zap.NewNop())
	require.NoError(t, err)
	v, err := second.Secret.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, int64(31), v)
}

func TestLoadKeyPair_SealedKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	_, err := GenerateKeyFile(path, 512, "s3cret")
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, keyseal.IsSealed(raw))

	cfg := config.Config{Encryption: config.EncryptionConfig{Scheme: "paillier", KeyFile: path, KeySealSecret: "s3cret"}}
	pair, err := LoadKeyPair(cfg, zap.NewNop())
	require.NoError(t, err)
	ct, err := pair.Scheme.Encrypt(-4)
	require.NoError(t, err)
	v, err := pair.Secret.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, int64(-4), v)

	cfg.Encryption.KeySealSecret = ""
	_, err = LoadKeyPair(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg.Encryption.KeySealSecret = "wrong"
	_, err = LoadKeyPair(cfg, zap.NewNop())
	assert.ErrorIs(t, err, keyseal.ErrOpen)
}

func TestLoadKeyPair_Plaintext(t *testing.T) {
	cfg := config.Config{Encryption: config.EncryptionConfig{Scheme: "plaintext"}}
	pair, err := LoadKeyPair(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, plaintext.SchemeName, pair.Scheme.Name())
}

func TestLoadKeyPair_Unknown(t *testing.T) {
	cfg := config.Config{Encryption: config.EncryptionConfig{Scheme: "rot13"}}
	_, err := LoadKeyPair(cfg, zap.NewNop())
	assert.Error(t, err)
}
