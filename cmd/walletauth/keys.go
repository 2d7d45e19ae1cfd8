package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var out string
	c := cobra.Command{
		Use:   "keygen",
		Short: "Generate a P-256 signing key for session tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
			if err != nil {
				return err
			}
			if out == "" {
				return encodeKey(cmd.OutOrStdout(), key)
			}
			f, err := os.OpenFile(out, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
			if err != nil {
				return err
			}
			defer f.Close()
			return encodeKey(f, key)
		},
	}
	c.Flags().StringVarP(&out, "out", "o", "", "write the key to this file instead of stdout")
	return &c
}

func encodeKey(w io.Writer, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to encode key: %w", err)
	}
	return pem.Encode(w, &pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

// loadSigningKey reads a PEM key, or generates an ephemeral one when path is empty
func loadSigningKey(path string) (key *ecdsa.PrivateKey, ephemeral bool, err error) {
	if path == "" {
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		return key, true, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read signing key: %w", err)
	}
	key, err = jwt.ParseECPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse signing key: %w", err)
	}
	if key.Curve != elliptic.P256() {
		return nil, false, fmt.Errorf("signing key must use P-256, got %s", key.Curve.Params().Name)
	}
	return key, false, nil
}
