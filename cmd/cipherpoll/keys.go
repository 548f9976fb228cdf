package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/railzwaylabs/cipherpoll/internal/accesspass"
	"github.com/railzwaylabs/cipherpoll/internal/encryption"
	encdomain "github.com/railzwaylabs/cipherpoll/internal/encryption/domain"
	"github.com/railzwaylabs/cipherpoll/internal/encryption/paillier"
	"github.com/railzwaylabs/cipherpoll/internal/encryption/plaintext"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newKeygenCmd() *cobra.Command {
	var (
		out        string
		bits       int
		force      bool
		sealSecret string
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a paillier key file and an access-pass signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s already exists, pass --force to overwrite", out)
			}
			if _, err := encryption.GenerateKeyFile(out, bits, sealSecret); err != nil {
				return err
			}

			priv, pub, err := accesspass.GenerateKeyPair()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "paillier key written to %s (%d bits)\n", out, bits)
			fmt.Fprintf(w, "CIPHERPOLL_ACCESS_PASS_PRIVATE_KEY=%s\n", priv)
			fmt.Fprintf(w, "access pass public key: %s\n", pub)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "cipherpoll-key.json", "paillier key file path")
	cmd.Flags().IntVar(&bits, "bits", 2048, "paillier modulus size")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key file")
	cmd.Flags().StringVar(&sealSecret, "seal-secret", os.Getenv("CIPHERPOLL_ENCRYPTION_KEY_SEAL_SECRET"), "seal the key file at rest with this secret")
	return cmd
}

func newEncryptCmd() *cobra.Command {
	var (
		keyFile    string
		publicKey  string
		sealSecret string
	)
	cmd := &cobra.Command{
		Use:   "encrypt <value>",
		Short: "Encrypt an integer for submission; prints base64 ciphertext",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("value must be an integer: %w", err)
			}

			scheme, err := loadScheme(keyFile, publicKey, sealSecret)
			if err != nil {
				return err
			}
			ct, err := scheme.Encrypt(value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(ct))
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "paillier key file")
	cmd.Flags().StringVar(&publicKey, "public-key", "", "public key JSON as served by /v1/encryption/public-key")
	cmd.Flags().StringVar(&sealSecret, "seal-secret", os.Getenv("CIPHERPOLL_ENCRYPTION_KEY_SEAL_SECRET"), "secret for a sealed key file")
	return cmd
}

func loadScheme(keyFile, publicKey, sealSecret string) (encdomain.Scheme, error) {
	switch {
	case publicKey != "":
		var info encdomain.PublicKeyInfo
		if err := json.Unmarshal([]byte(publicKey), &info); err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		if info.Scheme == plaintext.SchemeName {
			return plaintext.New(), nil
		}
		pk, err := paillier.ParsePublicKey(info)
		if err != nil {
			return nil, err
		}
		return pk, nil
	case keyFile != "":
		sk, err := encryption.ReadKeyFile(keyFile, sealSecret, zap.NewNop())
		if err != nil {
			return nil, err
		}
		return sk.PublicKey, nil
	default:
		return nil, errors.New("one of --key-file or --public-key is required")
	}
}
