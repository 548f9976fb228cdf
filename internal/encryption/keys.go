package encryption

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/railzwaylabs/cipherpoll/internal/config"
	"github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
	"github.com/railzwaylabs/cipherpoll/internal/encryption/keyseal"
	"github.com/railzwaylabs/cipherpoll/internal/encryption/paillier"
	"github.com/railzwaylabs/cipherpoll/internal/encryption/plaintext"
	"go.uber.org/zap"
)

type KeyPair struct {
	Scheme domain.Scheme
	Secret domain.KeyHolder
}

// PlaintextPair returns the transparent test scheme.
func PlaintextPair() KeyPair {
	s := plaintext.New()
	return KeyPair{Scheme: s, Secret: s}
}

func PaillierPair(sk *paillier.PrivateKey) KeyPair {
	return KeyPair{Scheme: sk.PublicKey, Secret: sk}
}

// LoadKeyPair resolves the configured scheme. For paillier the key file is
// read, or generated and written when absent.
func LoadKeyPair(cfg config.Config, log *zap.Logger) (KeyPair, error) {
	log = log.Named("encryption.keys")

	switch strings.ToLower(cfg.Encryption.Scheme) {
	case plaintext.SchemeName:
		log.Warn("plaintext encryption scheme in use; submissions are NOT confidential")
		return PlaintextPair(), nil
	case paillier.SchemeName:
		sk, err := ReadKeyFile(cfg.Encryption.KeyFile, cfg.Encryption.KeySealSecret, log)
		if err == nil {
			return PaillierPair(sk), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return KeyPair{}, err
		}

		log.Warn("encryption key file missing, generating a new key",
			zap.String("path", cfg.Encryption.KeyFile),
			zap.Int("bits", cfg.Encryption.KeyBits))
		sk, err = GenerateKeyFile(cfg.Encryption.KeyFile, cfg.Encryption.KeyBits, cfg.Encryption.KeySealSecret)
		if err != nil {
			return KeyPair{}, err
		}
		return PaillierPair(sk), nil
	default:
		return KeyPair{}, fmt.Errorf("unsupported encryption scheme %q", cfg.Encryption.Scheme)
	}
}

// ReadKeyFile loads a paillier key, unsealing it when needed.
func ReadKeyFile(path, sealSecret string, log *zap.Logger) (*paillier.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err = unseal(raw, sealSecret, log)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	sk, err := paillier.ParsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return sk, nil
}

// GenerateKeyFile writes a fresh paillier key to path with owner-only access.
// A non-empty sealSecret seals the file contents.
func GenerateKeyFile(path string, bits int, sealSecret string) (*paillier.PrivateKey, error) {
	sk, err := paillier.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	raw, err := json.MarshalIndent(sk, "", "  ")
	if err != nil {
		return nil, err
	}
	if sealSecret != "" {
		sealer, err := keyseal.New(sealSecret)
		if err != nil {
			return nil, err
		}
		if raw, err = sealer.Seal(raw); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return sk, nil
}

func unseal(raw []byte, secret string, log *zap.Logger) ([]byte, error) {
	if !keyseal.IsSealed(raw) {
		if secret != "" {
			log.Warn("encryption.key_seal_secret is set but the key file is not sealed")
		}
		return raw, nil
	}
	if secret == "" {
		return nil, errors.New("key file is sealed and encryption.key_seal_secret is empty")
	}
	sealer, err := keyseal.New(secret)
	if err != nil {
		return nil, err
	}
	return sealer.Open(raw)
}
