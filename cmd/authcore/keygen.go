package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewKeygenCmd creates the keygen subcommand.
func NewKeygenCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 session signing key pair",
		Long: `Write session_ed25519.pem (PKCS#8, mode 0600) and session_ed25519.pub.pem
(PKIX) into the output directory. Existing files are never overwritten.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, pub, err := writeKeyPair(dir)
			if err != nil {
				return err
			}
			cmd.Printf("private key: %s\npublic key:  %s\n", priv, pub)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "out", ".", "output directory")
	return cmd
}

func writeKeyPair(dir string) (privPath, pubPath string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", oops.Code("KEYGEN_FAILED").Wrap(err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", "", oops.Code("KEYGEN_FAILED").With("operation", "marshal private key").Wrap(err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", "", oops.Code("KEYGEN_FAILED").With("operation", "marshal public key").Wrap(err)
	}

	privPath = filepath.Join(dir, "session_ed25519.pem")
	pubPath = filepath.Join(dir, "session_ed25519.pub.pem")
	if err := writePEM(privPath, "PRIVATE KEY", privDER, 0o600); err != nil {
		return "", "", err
	}
	if err := writePEM(pubPath, "PUBLIC KEY", pubDER, 0o644); err != nil {
		return "", "", err
	}
	return privPath, pubPath, nil
}

func writePEM(path, blockType string, der []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return oops.Code("KEYGEN_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		_ = f.Close()
		return oops.Code("KEYGEN_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return oops.Code("KEYGEN_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
