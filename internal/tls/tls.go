// Package tls builds the transport security of the gRPC listener from PEM files.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoCACertificates is returned when a CA file holds no PEM certificate.
var ErrNoCACertificates = errors.New("no valid CA certificate found")

// Config locates the server key pair and, for mutual TLS, the client CA bundle.
type Config struct {
	CertFile string
	KeyFile  string
	// ClientCAFile enables mutual TLS when set.
	ClientCAFile string
}

// ServerConfig returns a *tls.Config for the gRPC listener. Client certificates are required
// and verified when cfg.ClientCAFile is set.
func ServerConfig(cfg Config) (*tls.Config, error) {
	cert, err := LoadCertificate(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading server certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		ClientAuth:   tls.NoClientCert,
	}

	if cfg.ClientCAFile != "" {
		pool, caErr := LoadCACertPool(cfg.ClientCAFile)
		if caErr != nil {
			return nil, fmt.Errorf("loading client CA: %w", caErr)
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return tlsConfig, nil
}

// LoadCertificate loads an X.509 key pair from PEM files.
func LoadCertificate(certFile, keyFile string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("loading certificate from %s and %s: %w", certFile, keyFile, err)
	}
	return cert, nil
}

// LoadCACertPool loads every PEM certificate of caFile into a pool.
func LoadCACertPool(caFile string) (*x509.CertPool, error) {
	cleanPath := filepath.Clean(caFile)
	caPEM, err := os.ReadFile(cleanPath) //nolint:gosec // path comes from validated config
	if err != nil {
		return nil, fmt.Errorf("reading CA certificate from %s: %w", cleanPath, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("%w in %s", ErrNoCACertificates, cleanPath)
	}
	return pool, nil
}
