// Package tls provides the certificate used by the HTTPS listener: either a
// freshly generated self-signed one or a key pair loaded from PEM.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// Options controls self-signed certificate generation.
type Options struct {
	// Organization name for the certificate
	Organization string
	// Hosts are DNS names or IP addresses the certificate is valid for.
	Hosts []string
	// Validity duration
	ValidFor time.Duration
}

// DefaultOptions returns options suitable for a local test server.
func DefaultOptions() Options {
	return Options{
		Organization: "mockserver",
		Hosts:        []string{"localhost", "127.0.0.1", "::1"},
		ValidFor:     24 * time.Hour,
	}
}

// Certificate is a key pair ready for a TLS listener, kept together with
// its PEM encoding so clients can be told to trust it.
type Certificate struct {
	TLS     tls.Certificate
	Leaf    *x509.Certificate
	CertPEM []byte
	KeyPEM  []byte
}

// SelfSigned generates a self-signed ECDSA P-256 certificate.
func SelfSigned(opts Options) (*Certificate, error) {
	defaults := DefaultOptions()
	if opts.Organization == "" {
		opts.Organization = defaults.Organization
	}
	if len(opts.Hosts) == 0 {
		opts.Hosts = defaults.Hosts
	}
	if opts.ValidFor <= 0 {
		opts.ValidFor = defaults.ValidFor
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now().Add(-time.Minute)
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{opts.Organization},
			CommonName:   opts.Hosts[0],
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(opts.ValidFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, h := range opts.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	// Self-signed, so parent = template
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	return FromPEM(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	)
}

// CertPool returns a pool that trusts this certificate.
func (c *Certificate) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(c.Leaf)
	return pool
}

// ServerConfig returns a TLS configuration serving this certificate.
func (c *Certificate) ServerConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{c.TLS},
		MinVersion:   tls.VersionTLS12,
	}
}

// ClientConfig returns a TLS configuration that trusts only this certificate.
func (c *Certificate) ClientConfig() *tls.Config {
	return &tls.Config{
		RootCAs:    c.CertPool(),
		MinVersion: tls.VersionTLS12,
	}
}
