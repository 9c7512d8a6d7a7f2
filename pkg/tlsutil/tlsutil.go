// Package tlsutil loads TLS credentials for the ledger's gRPC server and
// mints a throwaway CA plus server certificate for local development.
package tlsutil

import (
	"crypto"
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
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc/credentials"
)

// ServerCredentials loads the gRPC server key pair. With a clientCAFile the
// server also demands a client certificate signed by that CA.
func ServerCredentials(certFile, keyFile, clientCAFile string) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: load server key pair: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}
	if clientCAFile != "" {
		pool, err := loadPool(clientCAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return credentials.NewTLS(cfg), nil
}

func loadPool(caFile string) (*x509.CertPool, error) {
	raw, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: read CA %s: %w", caFile, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(raw) {
		return nil, fmt.Errorf("tlsutil: no certificates in %s", caFile)
	}
	return pool, nil
}

// DevCertificates are the files written by GenerateDevCertificates.
type DevCertificates struct {
	CACert     string
	CAKey      string
	ServerCert string
	ServerKey  string
}

// GenerateDevCertificates writes a self-signed CA and a server certificate
// for hosts into outDir. IP literals become IP SANs, anything else a DNS SAN.
func GenerateDevCertificates(outDir string, hosts []string) (DevCertificates, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return DevCertificates{}, fmt.Errorf("tlsutil: mkdir %s: %w", outDir, err)
	}
	out := DevCertificates{
		CACert:     filepath.Join(outDir, "ca.pem"),
		CAKey:      filepath.Join(outDir, "ca-key.pem"),
		ServerCert: filepath.Join(outDir, "server.pem"),
		ServerKey:  filepath.Join(outDir, "server-key.pem"),
	}
	now := time.Now()

	caKey, caCert, err := issue(&x509.Certificate{
		Subject:               pkix.Name{Organization: []string{"BNPL Ledger Dev CA"}},
		NotBefore:             now,
		NotAfter:              now.AddDate(5, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}, nil, nil)
	if err != nil {
		return DevCertificates{}, fmt.Errorf("tlsutil: CA: %w", err)
	}

	leaf := &x509.Certificate{
		Subject:     pkix.Name{Organization: []string{"BNPL Ledger Dev"}, CommonName: "bnpl-service"},
		NotBefore:   now,
		NotAfter:    now.AddDate(1, 0, 0),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			leaf.IPAddresses = append(leaf.IPAddresses, ip)
		} else {
			leaf.DNSNames = append(leaf.DNSNames, h)
		}
	}
	serverKey, serverCert, err := issue(leaf, caCert, caKey)
	if err != nil {
		return DevCertificates{}, fmt.Errorf("tlsutil: server: %w", err)
	}

	for path, pair := range map[string]struct {
		key  *ecdsa.PrivateKey
		cert *x509.Certificate
	}{
		out.CACert:     {cert: caCert},
		out.CAKey:      {key: caKey},
		out.ServerCert: {cert: serverCert},
		out.ServerKey:  {key: serverKey},
	} {
		if err := writePEM(path, pair.key, pair.cert); err != nil {
			return DevCertificates{}, err
		}
	}
	return out, nil
}

// issue creates a P-256 key and a certificate for template, signed by parent
// or self-signed when parent is nil.
func issue(template, parent *x509.Certificate, parentKey crypto.Signer) (*ecdsa.PrivateKey, *x509.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 126))
	if err != nil {
		return nil, nil, fmt.Errorf("serial: %w", err)
	}
	template.SerialNumber = serial

	if parent == nil {
		parent, parentKey = template, key
	}
	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, parentKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("parse certificate: %w", err)
	}
	return key, cert, nil
}

// writePEM writes either key or cert to path; keys are owner-only.
func writePEM(path string, key *ecdsa.PrivateKey, cert *x509.Certificate) error {
	block := &pem.Block{}
	mode := os.FileMode(0o644)
	if key != nil {
		der, err := x509.MarshalECPrivateKey(key)
		if err != nil {
			return fmt.Errorf("tlsutil: marshal key for %s: %w", path, err)
		}
		block.Type, block.Bytes, mode = "EC PRIVATE KEY", der, 0o600
	} else {
		block.Type, block.Bytes = "CERTIFICATE", cert.Raw
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), mode); err != nil {
		return fmt.Errorf("tlsutil: write %s: %w", path, err)
	}
	return nil
}
