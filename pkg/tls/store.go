package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FromPEM builds a Certificate from PEM-encoded certificate and key.
// Any key type supported by crypto/tls is accepted.
func FromPEM(certPEM, keyPEM []byte) (*Certificate, error) {
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to load key pair: %w", err)
	}
	if len(pair.Certificate) == 0 {
		return nil, errors.New("no certificate in PEM data")
	}

	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	pair.Leaf = leaf

	return &Certificate{
		TLS:     pair,
		Leaf:    leaf,
		CertPEM: certPEM,
		KeyPEM:  keyPEM,
	}, nil
}

// LoadFiles loads a certificate and private key from PEM files.
func LoadFiles(certPath, keyPath string) (*Certificate, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return FromPEM(certPEM, keyPEM)
}

// Save writes the certificate and private key as PEM files, creating
// parent directories as needed. The key file is only readable by its owner.
func (c *Certificate) Save(certPath, keyPath string) error {
	for _, p := range []string{certPath, keyPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(certPath, c.CertPEM, 0o644); err != nil { //nolint:gosec // certificate is public
		return fmt.Errorf("failed to write certificate file: %w", err)
	}
	if err := os.WriteFile(keyPath, c.KeyPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}
