package tls

import (
	"crypto/tls"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelfSignedDefaults(t *testing.T) {
	cert, err := SelfSigned(Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"mockserver"}, cert.Leaf.Subject.Organization)
	assert.Equal(t, "localhost", cert.Leaf.Subject.CommonName)
	assert.Contains(t, cert.Leaf.DNSNames, "localhost")
	assert.Len(t, cert.Leaf.IPAddresses, 2)
	assert.True(t, cert.Leaf.NotAfter.After(time.Now().Add(23*time.Hour)))
	assert.NoError(t, cert.Leaf.VerifyHostname("127.0.0.1"))
}

func TestSelfSignedHosts(t *testing.T) {
	cert, err := SelfSigned(Options{Hosts: []string{"mock.local", "10.0.0.1"}, ValidFor: time.Hour})
	require.NoError(t, err)

	assert.Equal(t, []string{"mock.local"}, cert.Leaf.DNSNames)
	require.Len(t, cert.Leaf.IPAddresses, 1)
	assert.True(t, cert.Leaf.IPAddresses[0].Equal(net.ParseIP("10.0.0.1")))
}

func TestHandshake(t *testing.T) {
	cert, err := SelfSigned(DefaultOptions())
	require.NoError(t, err)

	ln, err := tls.Listen("tcp", "127.0.0.1:0", cert.ServerConfig())
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		done <- conn.(*tls.Conn).Handshake()
	}()

	cfg := cert.ClientConfig()
	cfg.ServerName = "localhost"
	conn, err := tls.Dial("tcp", ln.Addr().String(), cfg)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.NoError(t, <-done)
}

func TestSaveAndLoadFiles(t *testing.T) {
	cert, err := SelfSigned(DefaultOptions())
	require.NoError(t, err)

	dir := t.TempDir()
	certPath := filepath.Join(dir, "certs", "server.crt")
	keyPath := filepath.Join(dir, "certs", "server.key")
	require.NoError(t, cert.Save(certPath, keyPath))

	loaded, err := LoadFiles(certPath, keyPath)
	require.NoError(t, err)
	assert.Equal(t, cert.Leaf.SerialNumber, loaded.Leaf.SerialNumber)
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadFiles("/no/such/cert.pem", "/no/such/key.pem")
	assert.Error(t, err)

	_, err = FromPEM([]byte("not pem"), []byte("not pem"))
	assert.Error(t, err)

	a, err := SelfSigned(DefaultOptions())
	require.NoError(t, err)
	b, err := SelfSigned(DefaultOptions())
	require.NoError(t, err)
	_, err = FromPEM(a.CertPEM, b.KeyPEM)
	assert.Error(t, err, "mismatched key pair")
}
