// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package tlstest generates throwaway certificate material for tests: a root
// CA plus server and client leaf certificates written as PEM files.
package tlstest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
)

// CA holds a certificate authority certificate and private key.
type CA struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// Leaf holds a certificate signed by a CA.
type Leaf struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
	Name        string
}

// Bundle is a set of PEM files on disk.
type Bundle struct {
	Dir        string
	CACert     string
	ServerCert string
	ServerKey  string
	ClientCert string
	ClientKey  string
}

// GenerateCA creates a self-signed root CA.
func GenerateCA(commonName string) (*CA, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Wrapf(err, "generate CA key")
	}
	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"snapplugin test"},
			CommonName:   commonName,
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().AddDate(0, 0, 1),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, oops.Wrapf(err, "create CA certificate")
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, oops.Wrapf(err, "parse CA certificate")
	}
	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// GenerateLeaf creates a certificate signed by ca, valid for localhost and
// 127.0.0.1. server selects server auth usage; otherwise client auth.
func GenerateLeaf(ca *CA, name string, server bool) (*Leaf, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Wrapf(err, "generate %s key", name)
	}
	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	usage := x509.ExtKeyUsageClientAuth
	if server {
		usage = x509.ExtKeyUsageServerAuth
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"snapplugin test"},
			CommonName:   name,
		},
		NotBefore:   time.Now().Add(-time.Minute),
		NotAfter:    time.Now().AddDate(0, 0, 1),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{usage},
		DNSNames:    []string{"localhost"},
		IPAddresses: []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, ca.Certificate, &key.PublicKey, ca.PrivateKey)
	if err != nil {
		return nil, oops.Wrapf(err, "create %s certificate", name)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, oops.Wrapf(err, "parse %s certificate", name)
	}
	return &Leaf{Certificate: cert, PrivateKey: key, Name: name}, nil
}

// WriteBundle generates a CA, a server and a client certificate and writes
// them under dir as root-ca.crt, server.{crt,key} and client.{crt,key}.
func WriteBundle(dir string) (*Bundle, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, oops.Wrapf(err, "create certs directory")
	}
	ca, err := GenerateCA("snapplugin test CA")
	if err != nil {
		return nil, err
	}
	srv, err := GenerateLeaf(ca, "server", true)
	if err != nil {
		return nil, err
	}
	cli, err := GenerateLeaf(ca, "client", false)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		Dir:        dir,
		CACert:     filepath.Join(dir, "root-ca.crt"),
		ServerCert: filepath.Join(dir, "server.crt"),
		ServerKey:  filepath.Join(dir, "server.key"),
		ClientCert: filepath.Join(dir, "client.crt"),
		ClientKey:  filepath.Join(dir, "client.key"),
	}
	if err := SaveCert(b.CACert, ca.Certificate); err != nil {
		return nil, err
	}
	for _, l := range []struct {
		leaf      *Leaf
		cert, key string
	}{{srv, b.ServerCert, b.ServerKey}, {cli, b.ClientCert, b.ClientKey}} {
		if err := SaveCert(l.cert, l.leaf.Certificate); err != nil {
			return nil, err
		}
		if err := SaveKey(l.key, l.leaf.PrivateKey); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// SaveCert saves a certificate to a PEM file.
func SaveCert(path string, cert *x509.Certificate) error {
	return writePEM(path, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

// SaveKey saves an ECDSA private key to a PEM file.
func SaveKey(path string, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return oops.Wrapf(err, "marshal key")
	}
	return writePEM(path, &pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

func writePEM(path string, block *pem.Block) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return oops.With("path", path).Wrapf(err, "create PEM file")
	}
	if err := pem.Encode(f, block); err != nil {
		_ = f.Close()
		return oops.With("path", path).Wrapf(err, "encode PEM")
	}
	if err := f.Close(); err != nil {
		return oops.With("path", path).Wrapf(err, "close PEM file")
	}
	return nil
}

func newSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, oops.Wrapf(err, "generate serial")
	}
	return serial, nil
}
