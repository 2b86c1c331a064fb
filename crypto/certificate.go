package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// certificateLifetime bounds how long a per-call certificate is valid.
const certificateLifetime = 30 * 24 * time.Hour

// Certificate is the DTLS identity shared by every connection of one call.
type Certificate struct {
	PrivateKey *ecdsa.PrivateKey
	X509       *x509.Certificate
}

// GenerateCertificate creates a fresh self-signed ECDSA P-256 certificate.
func GenerateCertificate() (*Certificate, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate certificate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 63))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "callcore"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(certificateLifetime),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	c := &Certificate{PrivateKey: priv, X509: cert}

	logrus.WithFields(logrus.Fields{
		"function":    "GenerateCertificate",
		"fingerprint": c.Fingerprint(),
	}).Debug("Generated call certificate")

	return c, nil
}

// Fingerprint returns the SHA-256 fingerprint in the colon separated form
// used by SDP.
func (c *Certificate) Fingerprint() string {
	if c == nil || c.X509 == nil {
		return ""
	}
	sum := sha256.Sum256(c.X509.Raw)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

// PEM encodes the certificate and its private key.
func (c *Certificate) PEM() (certPEM, keyPEM []byte, err error) {
	if c == nil || c.X509 == nil || c.PrivateKey == nil {
		return nil, nil, ErrNilCertificate
	}
	keyDER, err := x509.MarshalECPrivateKey(c.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	defer ZeroBytes(keyDER)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.X509.Raw})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

// ParseCertificatePEM rebuilds a Certificate from PEM blocks.
func ParseCertificatePEM(certPEM, keyPEM []byte) (*Certificate, error) {
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, fmt.Errorf("%w: no certificate block", ErrInvalidPEM)
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("%w: no key block", ErrInvalidPEM)
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPEM, err)
	}
	priv, err := x509.ParseECPrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPEM, err)
	}
	return &Certificate{PrivateKey: priv, X509: cert}, nil
}
