// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package tls assembles transport credentials for the plugin's RPC server
// from certificate and key files named on the command line.
package tls

import (
	"context"
	cryptotls "crypto/tls"
	"crypto/x509"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
)

// Error codes returned by Bootstrap.
const (
	CodeMissingArgument    = "MISSING_REQUIRED_ARGUMENT"
	CodeRootCertUnreadable = "ROOT_CERT_UNREADABLE"
	CodeKeyPairUnreadable  = "KEY_PAIR_UNREADABLE"
	CodeUnknownCipher      = "UNKNOWN_CIPHER"
)

// Options are the TLS-related settings gathered from flags and config.
type Options struct {
	Enabled       bool
	RootCertPaths []string
	CertPath      string
	KeyPath       string
	CipherSuites  []string
	Logger        *slog.Logger
}

// Material is the loaded credential set for a TLS-enabled plugin.
type Material struct {
	// RootCertFiles lists every file that was loaded into the client CA pool,
	// after directory expansion.
	RootCertFiles []string
	ClientCAs     *x509.CertPool
	Certificate   cryptotls.Certificate
	CipherSuites  []uint16
}

// MissingArgumentError builds the error for a TLS argument that was not supplied.
func MissingArgumentError(arg string) error {
	return oops.Code(CodeMissingArgument).
		With("argument", arg).
		Errorf("'%s' argument is missing. Required with 'tls' argument.", arg)
}

// Bootstrap validates the TLS arguments and loads the credential material.
// It returns nil, nil when TLS is not enabled.
func Bootstrap(ctx context.Context, opts Options) (*Material, error) {
	if !opts.Enabled {
		return nil, nil
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch {
	case opts.KeyPath == "":
		return nil, MissingArgumentError("key-path")
	case opts.CertPath == "":
		return nil, MissingArgumentError("cert-path")
	case len(opts.RootCertPaths) == 0:
		return nil, MissingArgumentError("root-cert-paths")
	}

	suites, err := CipherSuiteIDs(opts.CipherSuites)
	if err != nil {
		return nil, err
	}

	files := ExpandRootCertPaths(ctx, logger, opts.RootCertPaths)
	pool, err := loadRootPool(files)
	if err != nil {
		return nil, err
	}

	cert, err := loadKeyPair(opts.CertPath, opts.KeyPath)
	if err != nil {
		return nil, err
	}

	return &Material{
		RootCertFiles: files,
		ClientCAs:     pool,
		Certificate:   cert,
		CipherSuites:  suites,
	}, nil
}

// ServerConfig returns a mutual-TLS server configuration.
func (m *Material) ServerConfig() *cryptotls.Config {
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{m.Certificate},
		ClientCAs:    m.ClientCAs,
		ClientAuth:   cryptotls.RequireAndVerifyClientCert,
		MinVersion:   cryptotls.VersionTLS12,
		CipherSuites: m.CipherSuites,
	}
}

// ClientConfig builds the orchestrator-side configuration for dialing a
// TLS-enabled plugin.
func ClientConfig(rootCertPaths []string, certPath, keyPath string) (*cryptotls.Config, error) {
	if len(rootCertPaths) == 0 {
		return nil, MissingArgumentError("root-cert-paths")
	}
	files := ExpandRootCertPaths(context.Background(), slog.Default(), rootCertPaths)
	pool, err := loadRootPool(files)
	if err != nil {
		return nil, err
	}
	cfg := &cryptotls.Config{
		RootCAs:    pool,
		MinVersion: cryptotls.VersionTLS12,
	}
	if certPath != "" || keyPath != "" {
		cert, err := loadKeyPair(certPath, keyPath)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []cryptotls.Certificate{cert}
	}
	return cfg, nil
}

// ExpandRootCertPaths replaces each directory in paths with the regular files
// directly inside it. Nested directories are skipped and logged at debug.
// Paths that cannot be inspected are kept so loading reports them.
func ExpandRootCertPaths(ctx context.Context, logger *slog.Logger, paths []string) []string {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			files = append(files, p)
			continue
		}
		for _, e := range entries {
			child := filepath.Join(p, e.Name())
			if e.IsDir() {
				logger.DebugContext(ctx, "skipping second level directory",
					"path", child, "parent", p)
				continue
			}
			files = append(files, child)
		}
	}
	return files
}

func loadRootPool(files []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, f := range files {
		data, err := os.ReadFile(filepath.Clean(f))
		if err != nil {
			return nil, oops.Code(CodeRootCertUnreadable).
				With("path", f).
				Wrapf(err, "%s failed to load as a root certificate", f)
		}
		if !pool.AppendCertsFromPEM(data) {
			return nil, oops.Code(CodeRootCertUnreadable).
				With("path", f).
				Errorf("%s failed to load as a root certificate: no PEM certificates found", f)
		}
	}
	return pool, nil
}

func loadKeyPair(certPath, keyPath string) (cryptotls.Certificate, error) {
	keyPEM, err := os.ReadFile(filepath.Clean(keyPath))
	if err != nil {
		return cryptotls.Certificate{}, oops.Code(CodeKeyPairUnreadable).
			With("path", keyPath).
			Wrapf(err, "%s failed to load as a private key", keyPath)
	}
	certPEM, err := os.ReadFile(filepath.Clean(certPath))
	if err != nil {
		return cryptotls.Certificate{}, oops.Code(CodeKeyPairUnreadable).
			With("path", certPath).
			Wrapf(err, "%s failed to load as a certificate", certPath)
	}
	cert, err := cryptotls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return cryptotls.Certificate{}, oops.Code(CodeKeyPairUnreadable).
			With("cert_path", certPath).
			With("key_path", keyPath).
			Wrapf(err, "%s and %s do not form a key pair", certPath, keyPath)
	}
	return cert, nil
}

var opensslCiphers = map[string]uint16{
	"ECDHE-RSA-AES128-GCM-SHA256":   cryptotls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"ECDHE-RSA-AES256-GCM-SHA384":   cryptotls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"ECDHE-ECDSA-AES128-GCM-SHA256": cryptotls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"ECDHE-ECDSA-AES256-GCM-SHA384": cryptotls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"ECDHE-RSA-CHACHA20-POLY1305":   cryptotls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	"ECDHE-ECDSA-CHACHA20-POLY1305": cryptotls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
}

// CipherSuiteIDs maps OpenSSL-style or Go-style cipher suite names to IDs.
// An empty list yields nil, leaving the Go defaults in place.
func CipherSuiteIDs(names []string) ([]uint16, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ids := make([]uint16, 0, len(names))
	for _, name := range names {
		if id, ok := opensslCiphers[strings.ToUpper(name)]; ok {
			ids = append(ids, id)
			continue
		}
		id, ok := goCipher(name)
		if !ok {
			return nil, oops.Code(CodeUnknownCipher).
				With("cipher", name).
				Errorf("unknown cipher suite %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func goCipher(name string) (uint16, bool) {
	for _, cs := range cryptotls.CipherSuites() {
		if cs.Name == name {
			return cs.ID, true
		}
	}
	return 0, false
}
